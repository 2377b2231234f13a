package models

import (
	"fmt"
	"sort"
	"strings"
)

// Reason закрытое перечисление причин отсутствия
type Reason string

const (
	ReasonSickness Reason = "sickness"
	ReasonVacation Reason = "vacation"
	ReasonUnpaid   Reason = "unpaid"
	ReasonOther    Reason = "other"
	ReasonUnknown  Reason = "unknown"
)

var allReasons = []Reason{
	ReasonSickness,
	ReasonVacation,
	ReasonUnpaid,
	ReasonOther,
	ReasonUnknown,
}

// Reasons возвращает все причины в фиксированном порядке
func Reasons() []Reason {
	out := make([]Reason, len(allReasons))
	copy(out, allReasons)
	return out
}

// Valid проверяет, что причина входит в перечисление
func (r Reason) Valid() bool {
	for _, known := range allReasons {
		if r == known {
			return true
		}
	}
	return false
}

// Index возвращает позицию причины в перечислении (-1 если неизвестна)
func (r Reason) Index() int {
	for i, known := range allReasons {
		if r == known {
			return i
		}
	}
	return -1
}

// ParseReason разбирает каноническое имя причины
func ParseReason(s string) (Reason, error) {
	r := Reason(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", &ConfigurationError{Field: "reason", Reason: fmt.Sprintf("unknown reason %q", s)}
	}
	return r, nil
}

// Встроенные синонимы: немецкие подписи из выгрузок и типы из бота графиков
var defaultReasonAliases = map[string]Reason{
	"sickness":                ReasonSickness,
	"sick":                    ReasonSickness,
	"sick_leave":              ReasonSickness,
	"krank":                   ReasonSickness,
	"krankheit":               ReasonSickness,
	"vacation":                ReasonVacation,
	"holiday":                 ReasonVacation,
	"urlaub":                  ReasonVacation,
	"unpaid":                  ReasonUnpaid,
	"unentschuldigtes fehlen": ReasonUnpaid,
	"other":                   ReasonOther,
	"day_off":                 ReasonOther,
	"andere":                  ReasonOther,
	"persönliche gründe":      ReasonOther,
	"fortbildung":             ReasonOther,
	"unknown":                 ReasonUnknown,
}

// ReasonTable сопоставляет сырые подписи причин с перечислением
type ReasonTable struct {
	aliases map[string]Reason
}

// NewReasonTable создает таблицу со встроенными синонимами и дополнительными
func NewReasonTable(extra map[string]Reason) *ReasonTable {
	aliases := make(map[string]Reason, len(defaultReasonAliases)+len(extra))
	for k, v := range defaultReasonAliases {
		aliases[k] = v
	}
	for k, v := range extra {
		aliases[normalizeLabel(k)] = v
	}
	return &ReasonTable{aliases: aliases}
}

// Resolve возвращает причину для сырой подписи
func (t *ReasonTable) Resolve(raw string) (Reason, bool) {
	r, ok := t.aliases[normalizeLabel(raw)]
	return r, ok
}

// Fingerprint стабильное представление таблицы для ключей кэша
func (t *ReasonTable) Fingerprint() string {
	keys := make([]string, 0, len(t.aliases))
	for k := range t.aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(string(t.aliases[k]))
		b.WriteByte(';')
	}
	return b.String()
}

// ParseReasonAliases разбирает строку вида "raw=reason,raw=reason"
func ParseReasonAliases(s string) (map[string]Reason, error) {
	out := make(map[string]Reason)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		raw, target, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(raw) == "" {
			return nil, &ConfigurationError{Field: "reason_aliases", Reason: fmt.Sprintf("malformed alias %q", pair)}
		}
		r, err := ParseReason(target)
		if err != nil {
			return nil, err
		}
		out[normalizeLabel(raw)] = r
	}
	return out, nil
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
