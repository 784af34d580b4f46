// Package validation содержит функции валидации входных данных.
package validation

// IsValidClockTime проверяет, что строка является временем в формате HH:MM
// (24-часовой формат, с ведущими нулями).
func IsValidClockTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}

	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	hours := int(s[0]-'0')*10 + int(s[1]-'0')
	minutes := int(s[3]-'0')*10 + int(s[4]-'0')

	return hours <= 23 && minutes <= 59
}
