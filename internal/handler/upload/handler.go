package upload

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	uploadService "github.com/zhouzirui/miaoge/backend/internal/service/upload"
	"github.com/zhouzirui/miaoge/backend/pkg/utils"
)

// multipart 头部等额外开销
const formOverhead = 1 << 20

// Handler 图片上传处理器
type Handler struct {
	logger *zap.Logger
}

// New 创建上传处理器
func New(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger}
}

// RegisterRoutes 注册上传路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.handleUpload)
}

// handleUpload validates a multipart "file" field and returns it as a data URI
// that can be attached to the next message.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, uploadService.MaxImageSize+formOverhead)
	if err := r.ParseMultipartForm(uploadService.MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, uploadService.ErrTooLarge.Error())
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	img, err := uploadService.Process(file, header.Header.Get("Content-Type"), header.Size)
	switch {
	case errors.Is(err, uploadService.ErrTooLarge):
		utils.RespondError(w, http.StatusRequestEntityTooLarge, uploadService.ErrTooLarge.Error())
		return
	case errors.Is(err, uploadService.ErrUnsupportedType):
		utils.RespondError(w, http.StatusUnsupportedMediaType, uploadService.ErrUnsupportedType.Error())
		return
	case err != nil:
		h.logger.Warn("图片处理失败", zap.String("filename", header.Filename), zap.Error(err))
		utils.RespondError(w, http.StatusBadRequest, uploadService.ErrProcessFailed.Error())
		return
	}

	h.logger.Debug("image accepted", zap.String("type", img.MIMEType), zap.Int64("size", img.Size))
	utils.RespondJSON(w, http.StatusOK, img)
}
