package models

// PlanType определяет тариф подписки.
type PlanType string

const (
	// PlanFree — бесплатный тариф с ограничениями.
	PlanFree PlanType = "free"
	// PlanPro — платный тариф без ограничений.
	PlanPro PlanType = "pro"
)

// Unlimited обозначает отсутствие лимита.
const Unlimited = -1

// FreeMonthlyOperationLimit — количество AI-операций в календарный месяц
// на бесплатном тарифе.
const FreeMonthlyOperationLimit = 10

// Features описывает возможности тарифа.
type Features struct {
	MonthlyOperationLimit int      `json:"monthly_operation_limit"` // -1 = без лимита
	NoteLimit             int      `json:"note_limit"`              // -1 = без лимита
	AIFeatures            bool     `json:"ai_features"`
	ExportFormats         []string `json:"export_formats"`
	FoldersEnabled        bool     `json:"folders_enabled"`
	TagsEnabled           bool     `json:"tags_enabled"`
}

// Plan — описание тарифа с ценой и возможностями.
type Plan struct {
	Type            PlanType `json:"type"`
	Name            string   `json:"name"`
	PriceCents      int64    `json:"price_cents"`
	ProviderPriceID string   `json:"-"`
	Features        Features `json:"features"`
}

var plans = map[PlanType]Plan{
	PlanFree: {
		Type:       PlanFree,
		Name:       "Free",
		PriceCents: 0,
		Features: Features{
			MonthlyOperationLimit: FreeMonthlyOperationLimit,
			NoteLimit:             100,
			AIFeatures:            true,
			ExportFormats:         []string{"txt"},
			FoldersEnabled:        false,
			TagsEnabled:           false,
		},
	},
	PlanPro: {
		Type:       PlanPro,
		Name:       "Pro",
		PriceCents: 499,
		Features: Features{
			MonthlyOperationLimit: Unlimited,
			NoteLimit:             Unlimited,
			AIFeatures:            true,
			ExportFormats:         []string{"txt", "md", "pdf"},
			FoldersEnabled:        true,
			TagsEnabled:           true,
		},
	},
}

// PlanFor возвращает описание тарифа. Неизвестный тариф трактуется
// как бесплатный.
func PlanFor(t PlanType) Plan {
	if p, ok := plans[t]; ok {
		return p
	}
	return plans[PlanFree]
}

// ResolvePlanName приводит пользовательское имя тарифа к типу.
// Исторический псевдоним "premium" отображается на PlanPro.
func ResolvePlanName(name string) (PlanType, bool) {
	switch name {
	case "pro", "premium":
		return PlanPro, true
	case "free":
		return PlanFree, true
	default:
		return "", false
	}
}
