package generator

import (
	"path/filepath"
	"sync"
	"time"

	"novel-runtime/shared/interfaces"
	"novel-runtime/shared/logger"
	"novel-runtime/shared/models"

	"go.uber.org/zap"
)

// FileAttemptLog пишет каждую попытку генерации (запрос и ответ) в дневной файл
// <dir>/runtime-YYYYMMDD.log, по одной JSON-строке на запись.
type FileAttemptLog struct {
	dir        string
	appendMode bool
	now        func() time.Time
	logger     *zap.Logger

	mu      sync.Mutex
	day     string
	file    *zap.Logger
	closeFn func() error
	opened  map[string]bool
}

var _ interfaces.AttemptRecorder = (*FileAttemptLog)(nil)

// NewFileAttemptLog создает журнал попыток. Без appendMode файл дня обрезается
// при первом открытии этим процессом.
func NewFileAttemptLog(dir string, appendMode bool, log *zap.Logger) *FileAttemptLog {
	return &FileAttemptLog{
		dir:        dir,
		appendMode: appendMode,
		now:        time.Now,
		logger:     log.Named("AttemptLog"),
		opened:     make(map[string]bool),
	}
}

// Record добавляет запись. Ошибки открытия файла логируются и не мешают генерации.
func (l *FileAttemptLog) Record(rec models.AttemptRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file := l.current()
	if file == nil {
		return
	}
	fields := []zap.Field{
		zap.String("kind", string(rec.Kind)),
		zap.String("storyID", rec.StoryID),
		zap.String("sliceID", rec.SliceID),
		zap.String("sessionID", rec.SessionID),
		zap.String("stage", string(rec.Stage)),
		zap.String("model", rec.Model),
	}
	switch rec.Kind {
	case models.AttemptRequest:
		fields = append(fields,
			zap.String("systemPrompt", rec.SystemPrompt),
			zap.String("userPrompt", rec.UserPrompt))
	default:
		fields = append(fields,
			zap.String("response", rec.Response),
			zap.Int("promptTokens", rec.Usage.PromptTokens),
			zap.Int("completionTokens", rec.Usage.CompletionTokens),
			zap.Bool("estimatedTokens", rec.Usage.Estimated),
			zap.Duration("duration", rec.Duration))
		if rec.Error != "" {
			fields = append(fields, zap.String("error", rec.Error))
		}
	}
	file.Info("attempt", fields...)
}

// current возвращает логгер текущего дня, переоткрывая файл при смене даты. Вызывается под mu.
func (l *FileAttemptLog) current() *zap.Logger {
	day := l.now().Format("20060102")
	if day == l.day && l.file != nil {
		return l.file
	}
	l.closeLocked()

	path := filepath.Join(l.dir, "runtime-"+day+".log")
	file, closeFn, err := logger.NewJSONFile(path, l.appendMode || l.opened[day])
	if err != nil {
		l.logger.Error("Failed to open attempt log", zap.String("path", path), zap.Error(err))
		return nil
	}
	l.opened[day] = true
	l.day, l.file, l.closeFn = day, file, closeFn
	return file
}

func (l *FileAttemptLog) closeLocked() {
	if l.file != nil {
		_ = l.file.Sync()
	}
	if l.closeFn != nil {
		if err := l.closeFn(); err != nil {
			l.logger.Warn("Failed to close attempt log", zap.Error(err))
		}
	}
	l.file, l.closeFn = nil, nil
}

// Close закрывает текущий файл.
func (l *FileAttemptLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
	return nil
}
