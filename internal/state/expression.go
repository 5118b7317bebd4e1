package state

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	literalRe   = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
	deltaRe     = regexp.MustCompile(`^([A-Za-z0-9_]+)\s*([+-])\s*(\d+(?:\.\d+)?)$`)
	referenceRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// evaluate вычисляет выражение setVar относительно текущих сигналов.
// Поддерживаются: литерал, "<key> +/- <delta>" (неизвестный key = 0) и ссылка на известный ключ.
// Ссылка ключа на самого себя возвращает его текущее значение.
func evaluate(expression string, signals map[string]float64) (float64, bool) {
	expr := strings.TrimSpace(expression)
	switch {
	case literalRe.MatchString(expr):
		return finite(strconv.ParseFloat(expr, 64))
	case deltaRe.MatchString(expr):
		m := deltaRe.FindStringSubmatch(expr)
		delta, ok := finite(strconv.ParseFloat(m[3], 64))
		if !ok {
			return 0, false
		}
		base := signals[m[1]]
		if m[2] == "-" {
			delta = -delta
		}
		return checkFinite(base + delta)
	case referenceRe.MatchString(expr):
		v, ok := signals[expr]
		if !ok {
			return 0, false
		}
		return checkFinite(v)
	default:
		return 0, false
	}
}

func finite(v float64, err error) (float64, bool) {
	if err != nil {
		return 0, false
	}
	return checkFinite(v)
}

func checkFinite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
