package models

import "time"

// Роли пользователя. Роль дублирует тариф для быстрых проверок доступа
// и обновляется обработкой событий провайдера.
const (
	RoleUser = "user"
	RolePro  = "pro"
)

// User представляет зарегистрированного пользователя сервиса заметок.
type User struct {
	UID                string    // Уникальный идентификатор пользователя
	Email              string    // Электронная почта (уникальная)
	Username           string    // Имя пользователя (уникальное)
	PasswordHash       string    // Хэш пароля
	Role               string    // Роль: user или pro
	ProviderCustomerID string    // Идентификатор клиента у платёжного провайдера, пустой пока не создан
	CreatedAt          time.Time // Дата регистрации
}
