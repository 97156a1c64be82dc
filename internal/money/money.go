// Package money interpreta valores monetários digitados livremente,
// aceitando tanto o formato brasileiro ("1.234,56") quanto o
// internacional ("1,234.56"), e normaliza tudo para centavos inteiros.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxIntPart é o maior valor inteiro cuja conversão para centavos ainda
// cabe em int64 com qualquer fração de dois dígitos.
const maxIntPart = math.MaxInt64/100 - 1

// ParseAmount converte texto livre em centavos. Retorna ok=false quando o
// valor é vazio, negativo ou ambíguo demais para interpretar com segurança.
func ParseAmount(raw string) (int64, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || strings.Contains(cleaned, "-") {
		return 0, false
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	intPart := cleaned
	fracPart := ""

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// O separador decimal é o que aparece por último; o outro é
		// separador de milhar e é descartado.
		sepIdx := lastComma
		thousands := "."
		if lastDot > lastComma {
			sepIdx = lastDot
			thousands = ","
		}
		intPart = strings.ReplaceAll(cleaned[:sepIdx], thousands, "")
		fracPart = cleaned[sepIdx+1:]
	case lastComma >= 0:
		intPart, fracPart = splitSingleSeparator(cleaned, lastComma)
	case lastDot >= 0:
		intPart, fracPart = splitSingleSeparator(cleaned, lastDot)
	}

	if len(fracPart) > 2 {
		return 0, false
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	if intPart == "" {
		intPart = "0"
	}
	intVal, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, false
	}
	if intVal > maxIntPart {
		return 0, false
	}
	fracVal, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, false
	}

	return intVal*100 + fracVal, true
}

// splitSingleSeparator decide se um separador único é decimal (seguido de
// 1 ou 2 dígitos) ou de milhar (qualquer outra quantidade de dígitos).
func splitSingleSeparator(cleaned string, idx int) (intPart, fracPart string) {
	tail := cleaned[idx+1:]
	if len(tail) == 1 || len(tail) == 2 {
		return cleaned[:idx], tail
	}
	sep := cleaned[idx : idx+1]
	return strings.ReplaceAll(cleaned, sep, ""), ""
}

// FormatCents devolve a representação canônica "123,45" usada nas telas.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d,%02d", sign, cents/100, cents%100)
}
