package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zhouzirui/miaoge/backend/internal/app"
	"github.com/zhouzirui/miaoge/backend/internal/model/chat"
	"github.com/zhouzirui/miaoge/backend/internal/service/conversation"
	"github.com/zhouzirui/miaoge/backend/internal/service/upload"
)

var emotionIcons = map[string]string{
	"joy":      "😸",
	"anger":    "😾",
	"sadness":  "😿",
	"thinking": "🐱",
}

func send(ctx context.Context, a *app.App, sessionID, text, image string, search bool) (*chat.Session, error) {
	content := conversation.ApplySearchMode(text, search)
	return a.Controller.Converse(ctx, a.Sessions, sessionID, content, image)
}

func clearSession(ctx context.Context, a *app.App, sessionID string) (*chat.Session, error) {
	session := a.Sessions.Clear(sessionID)
	if err := a.Sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("保存会话失败: %w", err)
	}
	return session, nil
}

// loadImage 读取本地图片并转成 data URI
func loadImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("打开图片失败: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("读取图片信息失败: %w", err)
	}

	img, err := upload.Process(f, "", info.Size())
	if err != nil {
		return "", err
	}
	return img.DataURI, nil
}

func formatMessage(name string, m chat.Message) string {
	if m.Role == chat.RoleUser {
		line := "你: " + m.Content
		if m.HasImage() {
			line += " 🖼"
		}
		return line
	}
	icon := emotionIcons[m.Emotion]
	if icon == "" {
		icon = emotionIcons["thinking"]
	}
	return fmt.Sprintf("%s %s: %s", icon, name, m.Content)
}

func printSession(out io.Writer, a *app.App, session *chat.Session) {
	name := a.Personas.Default().Name
	for _, m := range session.Messages {
		fmt.Fprintln(out, formatMessage(name, m))
	}
}

const interactiveHelp = `可用命令:
  /help           显示帮助
  /exit           退出程序
  /clear          清空会话
  /history        显示会话记录
  /image <path>   下一条消息附带图片
  /search <text>  联网搜索`

// interactive 逐行读取输入并发送，直到 EOF 或 /exit
func interactive(ctx context.Context, a *app.App, in io.Reader, out io.Writer, sessionID string) error {
	printSession(out, a, a.Sessions.Load(ctx, sessionID))

	reader := bufio.NewReader(in)
	pendingImage := ""
	name := a.Personas.Default().Name

	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)

		text := strings.TrimSpace(line)
		switch {
		case text == "":
		case text == "/exit" || text == "/quit":
			fmt.Fprintln(out, "再见!")
			return nil
		case text == "/help":
			fmt.Fprintln(out, interactiveHelp)
		case text == "/history":
			printSession(out, a, a.Sessions.Load(ctx, sessionID))
		case text == "/clear":
			session, err := clearSession(ctx, a, sessionID)
			if err != nil {
				fmt.Fprintln(out, err)
				break
			}
			pendingImage = ""
			printSession(out, a, session)
		case strings.HasPrefix(text, "/image "):
			image, err := loadImage(strings.TrimSpace(strings.TrimPrefix(text, "/image ")))
			if err != nil {
				fmt.Fprintln(out, err)
				break
			}
			pendingImage = image
			fmt.Fprintln(out, "图片已添加，发送下一条消息时附带")
		default:
			fmt.Fprintln(out, a.Personas.Default().ThinkingMessage)
			session, err := a.Controller.Converse(ctx, a.Sessions, sessionID, text, pendingImage)
			if err != nil {
				fmt.Fprintln(out, err)
				break
			}
			pendingImage = ""
			if last, ok := session.Last(); ok {
				fmt.Fprintln(out, formatMessage(name, last))
			}
		}

		if eof || ctx.Err() != nil {
			return nil
		}
	}
}
