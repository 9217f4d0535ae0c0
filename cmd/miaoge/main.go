package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zhouzirui/miaoge/backend/internal/app"
	"github.com/zhouzirui/miaoge/backend/internal/config"
	"github.com/zhouzirui/miaoge/backend/pkg/logger"
)

var (
	debugGlobal bool
	sessionID   string
	imagePath   string
	searchMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "miaoge",
	Short: "🐱 喵哥 - 终端聊天",
	Long:  `🐱 喵哥 - 在终端里和喵哥聊天，会话与网页端共用同一份存储。`,
}

var chatCmd = &cobra.Command{
	Use:   "chat [text]",
	Short: "发送消息，不带文本时进入交互模式",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChatCmd,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "显示会话记录",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			printSession(cmd.OutOrStdout(), a, a.Sessions.Load(ctx, sessionID))
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "清空会话",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			session, err := clearSession(ctx, a, sessionID)
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), a, session)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debugGlobal, "debug", "d", false, "调试模式")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "default", "会话 ID")

	chatCmd.Flags().StringVarP(&imagePath, "image", "i", "", "附带一张图片 (JPG/PNG/GIF/WebP, 不超过 5MB)")
	chatCmd.Flags().BoolVar(&searchMode, "search", false, "联网搜索模式")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runChatCmd(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			return interactive(ctx, a, cmd.InOrStdin(), out, sessionID)
		}

		image := ""
		if imagePath != "" {
			var err error
			if image, err = loadImage(imagePath); err != nil {
				return err
			}
		}

		session, err := send(ctx, a, sessionID, args[0], image, searchMode)
		if err != nil {
			return err
		}
		if last, ok := session.Last(); ok {
			fmt.Fprintln(out, formatMessage(a.Personas.Default().Name, last))
		}
		return nil
	})
}

// withApp 加载配置并组装服务，结束后关闭存储
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	log := initLogger(debugGlobal || cfg.Log.Debug)
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("关闭存储失败", zap.Error(err))
		}
	}()

	return fn(ctx, a)
}

// initLogger 终端模式下默认只输出警告以上
func initLogger(debug bool) *zap.Logger {
	log := logger.New(debug)
	if !debug {
		log = log.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	}
	return log
}
