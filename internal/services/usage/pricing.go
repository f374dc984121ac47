package usage

import "github.com/magabrotheeeer/notevault/internal/models"

// ModelClass — класс модели для тарификации токенов.
type ModelClass string

const (
	// ClassText — текстовые операции.
	ClassText ModelClass = "text"
	// ClassVision — операции с изображениями.
	ClassVision ModelClass = "vision"
)

// Ставки за миллион токенов в долларах США.
const (
	textInputRatePerMillion    = 0.15
	textOutputRatePerMillion   = 0.60
	visionInputRatePerMillion  = 2.50
	visionOutputRatePerMillion = 10.00
)

// Доли входных и выходных токенов в общем количестве. Провайдер отдаёт
// только суммарный счётчик, поэтому разбиение фиксированное и стоимость —
// сознательное приближение для внутреннего учёта, а не для выставления счетов.
const (
	inputShare  = 0.7
	outputShare = 0.3
)

// ClassFor возвращает класс модели для операции. Распознавание
// изображений тарифицируется дороже текстовых операций.
func ClassFor(operation models.Operation) ModelClass {
	if operation == models.OperationOCR {
		return ClassVision
	}
	return ClassText
}

// EstimateCost оценивает стоимость операции по суммарному количеству
// токенов: фиксированные 70% считаются входными, 30% — выходными.
func EstimateCost(operation models.Operation, tokensUsed int) float64 {
	inputRate, outputRate := textInputRatePerMillion, textOutputRatePerMillion
	if ClassFor(operation) == ClassVision {
		inputRate, outputRate = visionInputRatePerMillion, visionOutputRatePerMillion
	}

	tokens := float64(tokensUsed)
	inputCost := tokens * inputShare * inputRate / 1_000_000
	outputCost := tokens * outputShare * outputRate / 1_000_000
	return inputCost + outputCost
}
