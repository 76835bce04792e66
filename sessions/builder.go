package sessions

import (
	"time"

	"github.com/jrsteele09/epic-fhir-client/auth"
	"github.com/jrsteele09/epic-fhir-client/auth/coderepo"
	"github.com/jrsteele09/epic-fhir-client/fhir"
	"github.com/jrsteele09/epic-fhir-client/internal/config"
	"github.com/pkg/errors"
	goauth2 "golang.org/x/oauth2"
)

// Builder holds the collaborators shared by every session of one flow.
// The exchanger, and with it the record of consumed codes, outlives a reset.
type Builder struct {
	flow         Flow
	redirector   *auth.Redirector
	exchanger    *auth.Exchanger
	client       *fhir.Client
	exportTypes  []string
	pollInterval time.Duration
}

// NewBuilder wires the redirector, exchanger and FHIR client of a flow
func NewBuilder(flow Flow, cfg config.Config, endpoint goauth2.Endpoint, client *fhir.Client) (*Builder, error) {
	if client == nil {
		return nil, errors.New("[NewBuilder] FHIR client is required")
	}

	var settings config.FlowSettings
	switch flow {
	case HomeFlow:
		settings = cfg.GetHomeFlow()
	case BulkFlow:
		settings = cfg.GetBulkFlow()
	default:
		return nil, errors.Errorf("[NewBuilder] unknown flow %q", flow)
	}

	flowConfig := auth.NewFlowConfig(settings, cfg).WithEndpoint(endpoint)
	redirector, err := auth.NewRedirector(flowConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewBuilder] %s flow", flow)
	}
	exchanger, err := auth.NewExchanger(flowConfig, coderepo.NewInMemoryRepo())
	if err != nil {
		return nil, errors.Wrapf(err, "[NewBuilder] %s flow", flow)
	}

	return &Builder{
		flow:         flow,
		redirector:   redirector,
		exchanger:    exchanger,
		client:       client,
		exportTypes:  cfg.GetExportTypes(),
		pollInterval: cfg.GetPollInterval(),
	}, nil
}

// New creates a fresh session of the builder's flow
func (b *Builder) New() (*Session, error) {
	return New(b.flow, b.redirector, b.exchanger, b.client,
		WithExportTypes(b.exportTypes),
		WithPollInterval(b.pollInterval))
}

func (b *Builder) Redirector() *auth.Redirector { return b.redirector }

func (b *Builder) Exchanger() *auth.Exchanger { return b.exchanger }

func (b *Builder) Client() *fhir.Client { return b.client }
