package dte_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test: dobles en memoria de los puertos de salida
// ──────────────────────────────────────────────────────────────────────────────

const (
	testEmpresaID = "770685532"
	testRUT       = "77068553-2"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "development", Level: "error"})
}

func testCompany() *entity.Company {
	now := time.Now()
	return &entity.Company{
		ID:           testEmpresaID,
		RazonSocial:  "Transportes Altiro SpA",
		RUT:          testRUT,
		CertPassword: "clave-pfx",
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// fakeGateway doble del FiscalGateway: cada método devuelve la respuesta
// configurada y registra la llamada.
type fakeGateway struct {
	foliosResp       dte.GatewayResponse
	disponiblesResp  dte.GatewayResponse
	dteResp          dte.GatewayResponse
	timbreResp       dte.GatewayResponse
	sobreResp        dte.GatewayResponse
	enviarResp       dte.GatewayResponse
	consultaResp     dte.GatewayResponse
	validadorResp    dte.GatewayResponse
	estadoDTEResp    dte.GatewayResponse
	transportErr     error // si no es nil, todas las llamadas fallan a nivel transporte
	enviarCalls      int
	generarDTECalls  int
	generarSobreXMLs [][]byte
	foliosRutEmpresa string
}

func ok(body string) dte.GatewayResponse {
	return dte.GatewayResponse{StatusCode: 200, Reason: "OK", Body: []byte(body)}
}

func rejected(status int, body string) dte.GatewayResponse {
	return dte.GatewayResponse{StatusCode: status, Reason: "Error", Body: []byte(body)}
}

func (g *fakeGateway) SolicitarFolios(_ context.Context, _ dte.Credential, rutEmpresa string, _, _, _ int) (dte.GatewayResponse, error) {
	if g.transportErr != nil {
		return dte.GatewayResponse{}, g.transportErr
	}
	g.foliosRutEmpresa = rutEmpresa
	return g.foliosResp, nil
}

func (g *fakeGateway) ConsultarFoliosDisponibles(_ context.Context, _ dte.Credential, _ string, _, _ int) (dte.GatewayResponse, error) {
	if g.transportErr != nil {
		return dte.GatewayResponse{}, g.transportErr
	}
	return g.disponiblesResp, nil
}

func (g *fakeGateway) GenerarDTE(_ context.Context, _ dte.Credential, _ *entity.Document, _ []byte) (dte.GatewayResponse, error) {
	if g.transportErr != nil {
		return dte.GatewayResponse{}, g.transportErr
	}
	g.generarDTECalls++
	return g.dteResp, nil
}

func (g *fakeGateway) GenerarTimbre(_ context.Context, _ []byte, _ int) (dte.GatewayResponse, error) {
	if g.transportErr != nil {
		return dte.GatewayResponse{}, g.transportErr
	}
	return g.timbreResp, nil
}

func (g *fakeGateway) GenerarSobre(_ context.Context, _ dte.Credential, _ dte.Caratula, partes []dte.SobreParte) (dte.GatewayResponse, error) {
	if g.transportErr != nil {
		return dte.GatewayResponse{}, g.transportErr
	}
	for _, p := range partes {
		g.generarSobreXMLs = append(g.generarSobreXMLs, p.XML)
	}
	return g.sobreResp, nil
}

func (g *fakeGateway) EnviarSobre(_ context.Context, _ dte.Credential, _ dte.InfoEnvio, _ []byte) (dte.GatewayResponse, error) {
	if g.transportErr != nil {
		return dte.GatewayResponse{}, g.transportErr
	}
	g.enviarCalls++
	return g.enviarResp, nil
}

func (g *fakeGateway) ConsultarEnvio(_ context.Context, _ dte.Credential, _, _ string, _ int) (dte.GatewayResponse, error) {
	if g.transportErr != nil {
		return dte.GatewayResponse{}, g.transportErr
	}
	return g.consultaResp, nil
}

func (g *fakeGateway) ValidarDTE(_ context.Context, _ []byte, _ int) (dte.GatewayResponse, error) {
	if g.transportErr != nil {
		return dte.GatewayResponse{}, g.transportErr
	}
	return g.validadorResp, nil
}

func (g *fakeGateway) ConsultarEstadoDTE(_ context.Context, _ dte.Credential, _ dte.ConsultaEstadoDTE) (dte.GatewayResponse, error) {
	if g.transportErr != nil {
		return dte.GatewayResponse{}, g.transportErr
	}
	return g.estadoDTEResp, nil
}

// memStore doble en memoria del ArtifactStore.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func storeKey(empresaID, kind, seq string) string {
	return empresaID + "/" + kind + "/" + seq
}

func (s *memStore) Put(_ context.Context, empresaID, kind, seq string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(empresaID, kind, seq)
	s.objects[key] = append([]byte(nil), data...)
	return "mem://" + key, nil
}

func (s *memStore) Get(_ context.Context, empresaID, kind, seq string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, okFound := s.objects[storeKey(empresaID, kind, seq)]
	if !okFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, storeKey(empresaID, kind, seq))
	}
	return append([]byte(nil), data...), nil
}

// staticCerts devuelve siempre la misma credencial.
type staticCerts struct{}

func (staticCerts) GetCredential(_ context.Context, company *entity.Company) (dte.Credential, error) {
	return dte.Credential{RutFirmante: company.RUT, Password: company.CertPassword, PFX: []byte("pfx-bytes")}, nil
}

// stubRenderer renderer que devuelve bytes fijos o falla.
type stubRenderer struct {
	pdf []byte
	err error
}

func (r *stubRenderer) Render(_ context.Context, _ string) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.pdf, nil
}

// ── Repositorios en memoria ──────────────────────────────────────────────────

type memCompanyRepo struct {
	companies map[string]*entity.Company
}

func newMemCompanyRepo(companies ...*entity.Company) *memCompanyRepo {
	r := &memCompanyRepo{companies: make(map[string]*entity.Company)}
	for _, c := range companies {
		r.companies[c.ID] = c
	}
	return r
}

func (r *memCompanyRepo) Create(_ context.Context, c *entity.Company) error {
	r.companies[c.ID] = c
	return nil
}

func (r *memCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	return r.companies[id], nil
}

type memDocRepo struct {
	mu   sync.Mutex
	docs map[string]*entity.Document // key empresa/tipo/folio
}

func newMemDocRepo() *memDocRepo {
	return &memDocRepo{docs: make(map[string]*entity.Document)}
}

func docKey(empresaID string, tipoDTE, folio int) string {
	return fmt.Sprintf("%s/%d/%d", empresaID, tipoDTE, folio)
}

func (r *memDocRepo) Create(_ context.Context, doc *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := docKey(doc.EmpresaID, doc.TipoDTE, doc.Folio)
	if _, exists := r.docs[key]; exists {
		return fmt.Errorf("%w: folio %d ya registrado", domain.ErrConflict, doc.Folio)
	}
	cp := *doc
	r.docs[key] = &cp
	return nil
}

func (r *memDocRepo) UpdateArtifacts(_ context.Context, doc *entity.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := docKey(doc.EmpresaID, doc.TipoDTE, doc.Folio)
	if _, exists := r.docs[key]; !exists {
		return fmt.Errorf("%w: documento %s", domain.ErrNotFound, doc.ID)
	}
	cp := *doc
	r.docs[key] = &cp
	return nil
}

func (r *memDocRepo) GetByFolio(_ context.Context, empresaID string, tipoDTE, folio int) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, okFound := r.docs[docKey(empresaID, tipoDTE, folio)]
	if !okFound {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (r *memDocRepo) ListByFolios(_ context.Context, empresaID string, tipoDTE int, folios []int) ([]*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Document
	for _, f := range folios {
		if doc, okFound := r.docs[docKey(empresaID, tipoDTE, f)]; okFound {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memDocRepo) UpdateEstadoByFolios(_ context.Context, empresaID string, tipoDTE int, folios []int, estado string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range folios {
		if doc, okFound := r.docs[docKey(empresaID, tipoDTE, f)]; okFound {
			doc.Estado = estado
			doc.UpdatedAt = time.Now()
		}
	}
	return nil
}

// seed registra un documento directamente (estado inicial del escenario).
func (r *memDocRepo) seed(doc *entity.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[docKey(doc.EmpresaID, doc.TipoDTE, doc.Folio)] = &cp
}

type memEnvelopeRepo struct {
	mu        sync.Mutex
	envelopes map[string]*entity.Envelope
	folioSet  map[string]map[int]string // empresa → folio → sobre
}

func newMemEnvelopeRepo() *memEnvelopeRepo {
	return &memEnvelopeRepo{
		envelopes: make(map[string]*entity.Envelope),
		folioSet:  make(map[string]map[int]string),
	}
}

func (r *memEnvelopeRepo) Create(_ context.Context, env *entity.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.folioSet[env.EmpresaID]
	if set == nil {
		set = make(map[int]string)
		r.folioSet[env.EmpresaID] = set
	}
	for _, f := range env.Folios {
		if _, taken := set[f]; taken {
			return fmt.Errorf("%w: el folio %d ya pertenece a otro sobre", domain.ErrConflict, f)
		}
	}
	for _, f := range env.Folios {
		set[f] = env.ID
	}
	cp := *env
	r.envelopes[env.ID] = &cp
	return nil
}

func (r *memEnvelopeRepo) GetByID(_ context.Context, empresaID, id string) (*entity.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	env, okFound := r.envelopes[id]
	if !okFound || env.EmpresaID != empresaID {
		return nil, nil
	}
	cp := *env
	return &cp, nil
}

func (r *memEnvelopeRepo) EnvelopedFolios(_ context.Context, empresaID string, folios []int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var taken []int
	set := r.folioSet[empresaID]
	for _, f := range folios {
		if _, okFound := set[f]; okFound {
			taken = append(taken, f)
		}
	}
	return taken, nil
}

func (r *memEnvelopeRepo) UpdateEstado(_ context.Context, empresaID, id, estado string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	env, okFound := r.envelopes[id]
	if !okFound || env.EmpresaID != empresaID {
		return fmt.Errorf("%w: sobre %s", domain.ErrNotFound, id)
	}
	env.Estado = estado
	return nil
}

// seed registra un sobre existente con sus folios reclamados.
func (r *memEnvelopeRepo) seed(env *entity.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.folioSet[env.EmpresaID]
	if set == nil {
		set = make(map[int]string)
		r.folioSet[env.EmpresaID] = set
	}
	for _, f := range env.Folios {
		set[f] = env.ID
	}
	cp := *env
	r.envelopes[env.ID] = &cp
}

type memDispatchRepo struct {
	mu      sync.Mutex
	records []*entity.DispatchRecord
}

func newMemDispatchRepo() *memDispatchRepo {
	return &memDispatchRepo{}
}

func (r *memDispatchRepo) Create(_ context.Context, rec *entity.DispatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *memDispatchRepo) GetByEnvelope(_ context.Context, envelopeID string) (*entity.DispatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].EnvelopeID == envelopeID {
			cp := *r.records[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memDispatchRepo) UpdateLastStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			rec.LastStatus = status
			return nil
		}
	}
	return fmt.Errorf("%w: despacho %s", domain.ErrNotFound, id)
}
