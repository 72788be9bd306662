package models

import (
	"encoding/json"
	"time"

	id "pfascert/pkg/domain"
	dErrors "pfascert/pkg/domain-errors"
)

// Metadata is the tagged union of per-type evidence details. Decoding and
// validation dispatch exhaustively on the evidence type; an Evidence row
// never carries metadata of a different type.
type Metadata interface {
	EvidenceType() Type
	Validate() error
}

// LabReport metadata. LOD/LOQ are in parts per billion. ComponentIDs lists
// the product components the report actually tested.
type LabReport struct {
	Lab           string           `json:"lab"`
	Accreditation string           `json:"accreditation,omitempty"`
	Method        string           `json:"method,omitempty"`
	ReportDate    time.Time        `json:"report_date"`
	LODPPB        float64          `json:"lod_ppb,omitempty"`
	LOQPPB        float64          `json:"loq_ppb,omitempty"`
	SampleUnits   int              `json:"sample_units,omitempty"`
	SampleLots    int              `json:"sample_lots,omitempty"`
	AnalyteCount  int              `json:"analyte_count,omitempty"`
	SurfaceOnly   bool             `json:"surface_only,omitempty"`
	ComponentIDs  []id.ComponentID `json:"component_ids,omitempty"`
}

func (LabReport) EvidenceType() Type { return TypeLabReport }

func (m LabReport) Validate() error {
	if m.Lab == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "lab_report metadata requires lab")
	}
	if m.ReportDate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "lab_report metadata requires report_date")
	}
	if m.LODPPB < 0 || m.LOQPPB < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "lab_report detection limits must not be negative")
	}
	if m.SampleUnits < 0 || m.SampleLots < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "lab_report sample counts must not be negative")
	}
	return nil
}

// BrandStatement metadata.
type BrandStatement struct {
	StatementDate time.Time `json:"statement_date"`
	StatementText string    `json:"statement_text"`
	SignedBy      string    `json:"signed_by,omitempty"`
}

func (BrandStatement) EvidenceType() Type { return TypeBrandStatement }

func (m BrandStatement) Validate() error {
	if m.StatementDate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "brand_statement metadata requires statement_date")
	}
	if m.StatementText == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "brand_statement metadata requires statement_text")
	}
	return nil
}

// PolicyDocument metadata.
type PolicyDocument struct {
	Title         string    `json:"title"`
	EffectiveDate time.Time `json:"effective_date"`
}

func (PolicyDocument) EvidenceType() Type { return TypePolicyDocument }

func (m PolicyDocument) Validate() error {
	if m.Title == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "policy_document metadata requires title")
	}
	if m.EffectiveDate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "policy_document metadata requires effective_date")
	}
	return nil
}

// Screenshot metadata.
type Screenshot struct {
	CapturedAt time.Time `json:"captured_at"`
	SourceURL  string    `json:"source_url"`
}

func (Screenshot) EvidenceType() Type { return TypeScreenshot }

func (m Screenshot) Validate() error {
	if m.SourceURL == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "screenshot metadata requires source_url")
	}
	if m.CapturedAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "screenshot metadata requires captured_at")
	}
	return nil
}

// Correspondence metadata.
type Correspondence struct {
	SentAt  time.Time `json:"sent_at"`
	From    string    `json:"from"`
	To      string    `json:"to,omitempty"`
	Subject string    `json:"subject,omitempty"`
}

func (Correspondence) EvidenceType() Type { return TypeCorrespondence }

func (m Correspondence) Validate() error {
	if m.SentAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "correspondence metadata requires sent_at")
	}
	if m.From == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "correspondence metadata requires from")
	}
	return nil
}

// DecodeMetadata parses raw JSON into the metadata variant for evidenceType
// and validates it. The switch is exhaustive over known types.
func DecodeMetadata(evidenceType Type, raw json.RawMessage) (Metadata, error) {
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "metadata is required")
	}

	var meta Metadata
	var err error
	switch evidenceType {
	case TypeLabReport:
		var m LabReport
		err = json.Unmarshal(raw, &m)
		meta = m
	case TypeBrandStatement:
		var m BrandStatement
		err = json.Unmarshal(raw, &m)
		meta = m
	case TypePolicyDocument:
		var m PolicyDocument
		err = json.Unmarshal(raw, &m)
		meta = m
	case TypeScreenshot:
		var m Screenshot
		err = json.Unmarshal(raw, &m)
		meta = m
	case TypeCorrespondence:
		var m Correspondence
		err = json.Unmarshal(raw, &m)
		meta = m
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown evidence type %q", evidenceType)
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInvalidInput, "malformed metadata", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return meta, nil
}

// EncodeMetadata serializes a metadata variant for persistence.
func EncodeMetadata(meta Metadata) ([]byte, error) {
	if meta == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "evidence metadata is nil")
	}
	return json.Marshal(meta)
}
