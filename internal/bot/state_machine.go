package bot

import "tradecore/internal/models"

// ValidTransitions определяет допустимые переходы между статусами бота
var ValidTransitions = map[string][]string{
	models.BotStatusStopped: {models.BotStatusRunning},
	models.BotStatusRunning: {models.BotStatusPaused, models.BotStatusStopped},
	models.BotStatusPaused:  {models.BotStatusRunning, models.BotStatusStopped},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StatusInfo возвращает описание статуса для UI
func StatusInfo(s string) string {
	switch s {
	case models.BotStatusStopped:
		return "Бот остановлен"
	case models.BotStatusRunning:
		return "Бот работает"
	case models.BotStatusPaused:
		return "Бот на паузе (состояние сохранено)"
	default:
		return "Неизвестный статус"
	}
}

// IsActive возвращает true если бот исполняет тики
func IsActive(s string) bool {
	return s == models.BotStatusRunning
}
