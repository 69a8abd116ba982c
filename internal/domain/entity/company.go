package entity

import "time"

// Company representa una empresa emisora de DTEs (tenant del sistema).
// El ID es el RUT sin puntos ni guión, con dígito verificador incluido
// ("770685532"); coincide con el empresaID de las rutas.
type Company struct {
	ID           string
	RazonSocial  string
	RUT          string // con guión: "77068553-2"
	CertPassword string // contraseña del .pfx almacenado en el bucket
	Status       string // active, suspended, inactive
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
