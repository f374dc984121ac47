package models

import "time"

// Operation — тип метрируемой AI-операции над заметкой.
type Operation string

const (
	// OperationOCR — распознавание текста с изображения.
	OperationOCR Operation = "ocr"
	// OperationTitle — генерация заголовка заметки.
	OperationTitle Operation = "title"
	// OperationTags — подбор тегов.
	OperationTags Operation = "tags"
	// OperationClean — очистка распознанного текста.
	OperationClean Operation = "clean"
	// OperationSummarize — суммаризация заметки.
	OperationSummarize Operation = "summarize"
	// OperationRewrite — переписывание текста.
	OperationRewrite Operation = "rewrite"
)

// KnownOperation сообщает, входит ли операция в закрытый набор метрируемых.
func KnownOperation(op Operation) bool {
	switch op {
	case OperationOCR, OperationTitle, OperationTags,
		OperationClean, OperationSummarize, OperationRewrite:
		return true
	default:
		return false
	}
}

// UsageRecord представляет запись об использовании метрируемой операции.
// Запись неизменяема после фиксации и используется только для агрегации.
type UsageRecord struct {
	ID         string            `json:"id"`
	UserUID    string            `json:"user_uid"`
	NoteID     string            `json:"note_id,omitempty"` // Связанная заметка, может отсутствовать
	Operation  Operation         `json:"operation"`
	TokensUsed int               `json:"tokens_used"` // Количество токенов, неотрицательное
	Cost       float64           `json:"cost"`        // Стоимость операции, неотрицательная
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// QuotaCheck — результат проверки квоты перед метрируемым действием.
type QuotaCheck struct {
	Allowed bool `json:"allowed"`
	Used    int  `json:"used"`
	Limit   int  `json:"limit"` // -1 = без лимита
}
