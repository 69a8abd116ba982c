package rut

import (
	"fmt"
	"strings"
	"unicode"
)

// Helpers para el RUT chileno (Rol Único Tributario).
//
// El identificador de empresa que viaja en las rutas (empresaID) es el RUT
// sin puntos ni guión, con el dígito verificador incluido al final:
// "770685532" → RUT "77068553-2".

// FromEmpresaID convierte un empresaID en el RUT con guión que exige el
// proveedor de documentos tributarios ("77068553-2").
func FromEmpresaID(empresaID string) (string, error) {
	cleaned := clean(empresaID)
	if len(cleaned) < 2 {
		return "", fmt.Errorf("rut: empresaID %q demasiado corto", empresaID)
	}
	body, dv := cleaned[:len(cleaned)-1], cleaned[len(cleaned)-1:]
	if err := validate(body, dv); err != nil {
		return "", err
	}
	return body + "-" + dv, nil
}

// ComputeDV calcula el dígito verificador (módulo 11) para el cuerpo del RUT.
// Devuelve "0".."9" o "K".
func ComputeDV(body string) (string, error) {
	if body == "" {
		return "", fmt.Errorf("rut: cuerpo vacío")
	}
	sum, weight := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		r := rune(body[i])
		if !unicode.IsDigit(r) {
			return "", fmt.Errorf("rut: carácter no numérico %q en el cuerpo", r)
		}
		sum += int(r-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch rem := 11 - (sum % 11); rem {
	case 11:
		return "0", nil
	case 10:
		return "K", nil
	default:
		return fmt.Sprintf("%d", rem), nil
	}
}

// Validate valida un RUT completo en cualquier formato habitual
// ("77.068.553-2", "77068553-2" o "770685532").
func Validate(rut string) error {
	cleaned := clean(rut)
	if len(cleaned) < 2 {
		return fmt.Errorf("rut: %q demasiado corto", rut)
	}
	return validate(cleaned[:len(cleaned)-1], cleaned[len(cleaned)-1:])
}

func validate(body, dv string) error {
	expected, err := ComputeDV(body)
	if err != nil {
		return err
	}
	if !strings.EqualFold(expected, dv) {
		return fmt.Errorf("rut: dígito verificador inválido: esperado %s, recibido %s", expected, dv)
	}
	return nil
}

// clean elimina puntos y guiones y normaliza la K a mayúscula.
func clean(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == 'k' || r == 'K':
			b.WriteRune('K')
		}
	}
	return b.String()
}
