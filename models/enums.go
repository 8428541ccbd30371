package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Quality - сорт продукции, на проводе передаётся числовым кодом.
type Quality int

const (
	QualitySingle Quality = iota
	QualityDouble
	QualityTriple
)

var qualityLabels = map[Quality]string{
	QualitySingle: "Single Filter",
	QualityDouble: "Double Filter",
	QualityTriple: "Triple Filter",
}

var qualityNames = map[string]Quality{
	"single": QualitySingle,
	"double": QualityDouble,
	"triple": QualityTriple,
}

// QualityLabel - единственное место, где код сорта превращается в подпись.
func QualityLabel(code int) string {
	if l, ok := qualityLabels[Quality(code)]; ok {
		return l
	}
	return "Unknown Quality"
}

func (q Quality) Label() string { return QualityLabel(int(q)) }

func (q Quality) Valid() bool {
	_, ok := qualityLabels[q]
	return ok
}

// ParseQuality принимает код ("0"), имя ("single") или подпись ("Single Filter").
func ParseQuality(s string) (Quality, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		q := Quality(n)
		return q, q.Valid()
	}
	key := strings.ToLower(s)
	if q, ok := qualityNames[key]; ok {
		return q, true
	}
	for q, l := range qualityLabels {
		if strings.EqualFold(l, s) {
			return q, true
		}
	}
	return 0, false
}

func (q *Quality) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*q = Quality(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("quality must be a code or a name")
	}
	parsed, ok := ParseQuality(s)
	if !ok {
		// невалидное значение отсекает валидация сервиса
		*q = Quality(-1)
		return nil
	}
	*q = parsed
	return nil
}

// AllQualities для справочника клиента.
func AllQualities() []Quality {
	return []Quality{QualitySingle, QualityDouble, QualityTriple}
}

// Регионы выращивания
var Regions = []string{
	"Chamarajanagar",
	"Madhur",
	"Karepta",
	"Mandya",
	"Hollesphure",
	"Polyachi",
}

// NormalizeRegion приводит название к каноническому написанию.
func NormalizeRegion(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, r := range Regions {
		if strings.EqualFold(r, s) {
			return r, true
		}
	}
	return "", false
}

// Типовые объёмы заказа в тоннах
var QuantityTiers = []int{12, 15, 18, 25, 30}

const MaxQuantity = 10000

// OrderStatus хранится строкой; старые клиенты присылают true/false.
type OrderStatus string

const (
	StatusOpen    OrderStatus = "OPEN"
	StatusClosed  OrderStatus = "CLOSED"
	StatusExpired OrderStatus = "EXPIRED"
)

var OrderStatuses = []OrderStatus{StatusOpen, StatusClosed, StatusExpired}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusExpired:
		return true
	default:
		return false
	}
}

// ParseStatusFilter разбирает фильтр списка: "false" означает все неактивные заказы.
func ParseStatusFilter(s string) ([]OrderStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, true
	case "true", "active":
		return []OrderStatus{StatusOpen}, true
	case "false", "inactive":
		return []OrderStatus{StatusClosed, StatusExpired}, true
	}
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return nil, false
	}
	return []OrderStatus{st}, true
}

// ParseStatus разбирает новое значение статуса при обновлении.
func ParseStatus(s string) (OrderStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "active":
		return StatusOpen, true
	case "false", "inactive":
		return StatusClosed, true
	}
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// StatusValue - значение статуса из JSON: строка или булево.
type StatusValue string

func (v *StatusValue) UnmarshalJSON(b []byte) error {
	var flag bool
	if err := json.Unmarshal(b, &flag); err == nil {
		*v = StatusValue(strconv.FormatBool(flag))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("status must be a string or a boolean")
	}
	*v = StatusValue(s)
	return nil
}

// ChatType: 0 - текст, 1 - аудио.
type ChatType int

const (
	ChatText ChatType = iota
	ChatAudio
)

func (t ChatType) Valid() bool {
	return t == ChatText || t == ChatAudio
}
