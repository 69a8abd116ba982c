package entity

import "time"

// Estados del sobre de envío.
const (
	SobreGenerado = "GENERADO"
	SobreEnviado  = "ENVIADO"
)

// Envelope (Sobre) agrupa los XML de varios folios en un único artefacto
// de envío al SII. El conjunto de folios queda congelado en la creación:
// ningún folio puede pertenecer a dos sobres a la vez.
type Envelope struct {
	ID        string
	EmpresaID string
	Folios    []int
	XMLURL    string
	Estado    string
	CreatedAt time.Time
}

// DispatchRecord registra el envío de un sobre al SII y su último estado conocido.
// TrackID puede ser el centinela "Send Failed" cuando el gateway respondió 200
// sin incluir trackId; ese comportamiento se preserva tal cual (hay consumidores
// que dependen del string).
type DispatchRecord struct {
	ID         string
	EnvelopeID string
	TrackID    string
	SentAt     time.Time
	LastStatus string
}

// FolioRange rango contiguo de folios autorizado por el SII para una
// empresa y tipo de documento. La asignación es autoritativa upstream;
// localmente solo se transporta como valor.
type FolioRange struct {
	EmpresaID string
	TipoDTE   int
	Desde     int
	Hasta     int
}

// Cantidad devuelve el número de folios del rango.
func (r FolioRange) Cantidad() int {
	if r.Hasta < r.Desde {
		return 0
	}
	return r.Hasta - r.Desde + 1
}
