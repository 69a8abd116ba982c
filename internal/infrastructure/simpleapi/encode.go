package simpleapi

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// El campo "input" del gateway no es JSON: es una estructura clave/valor
// estilo literal de diccionario ({'Clave': 'valor', 'Numero': 5}). Los
// builders por endpoint arman un inputDict tipado y la serialización vive
// solo aquí, en el borde del transporte.

// field par clave/valor con orden estable.
type field struct {
	key string
	val interface{}
}

// inputDict estructura ordenada que se serializa al campo input.
type inputDict []field

func (d inputDict) encode() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(f.key)
		b.WriteString("': ")
		encodeValue(&b, f.val)
	}
	b.WriteByte('}')
	return b.String()
}

func encodeValue(b *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case string:
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(sanitize(val), "'", "\\'"))
		b.WriteByte('\'')
	case int:
		fmt.Fprintf(b, "%d", val)
	case bool:
		if val {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case decimal.Decimal:
		b.WriteString(val.String())
	case inputDict:
		b.WriteString(val.encode())
	case []inputDict:
		b.WriteByte('[')
		for i, d := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.encode())
		}
		b.WriteByte(']')
	default:
		fmt.Fprintf(b, "'%v'", val)
	}
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitize elimina diacríticos: el esquema del SII espera texto sin tildes
// y el gateway rechaza entradas fuera de su repertorio.
func sanitize(s string) string {
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		return s
	}
	return out
}
