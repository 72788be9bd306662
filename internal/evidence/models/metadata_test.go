package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pfascert/pkg/domain-errors"
)

func TestDecodeMetadata(t *testing.T) {
	t.Run("lab report round trip", func(t *testing.T) {
		raw := json.RawMessage(`{
			"lab": "Apex Analytical",
			"accreditation": "ISO 17025",
			"method": "LC-MS/MS",
			"report_date": "2026-06-01T00:00:00Z",
			"lod_ppb": 1,
			"loq_ppb": 3,
			"sample_units": 3,
			"sample_lots": 2
		}`)
		meta, err := DecodeMetadata(TypeLabReport, raw)
		require.NoError(t, err)

		lab, ok := meta.(LabReport)
		require.True(t, ok)
		assert.Equal(t, "Apex Analytical", lab.Lab)
		assert.Equal(t, "LC-MS/MS", lab.Method)
		assert.Equal(t, 3, lab.SampleUnits)
	})

	t.Run("lab report missing lab rejected", func(t *testing.T) {
		_, err := DecodeMetadata(TypeLabReport, json.RawMessage(`{"report_date":"2026-06-01T00:00:00Z"}`))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("brand statement requires text", func(t *testing.T) {
		_, err := DecodeMetadata(TypeBrandStatement, json.RawMessage(`{"statement_date":"2026-06-01T00:00:00Z"}`))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("metadata type cannot cross evidence type", func(t *testing.T) {
		// Screenshot JSON decoded as policy_document fails that schema's
		// required fields rather than silently passing.
		_, err := DecodeMetadata(TypePolicyDocument, json.RawMessage(`{"source_url":"https://example.com"}`))
		require.Error(t, err)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := DecodeMetadata(Type("warranty_card"), json.RawMessage(`{}`))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("empty metadata rejected", func(t *testing.T) {
		_, err := DecodeMetadata(TypeLabReport, nil)
		require.Error(t, err)
	})
}

func TestTypeExpiry(t *testing.T) {
	cases := map[Type]int{
		TypeLabReport:      24,
		TypeBrandStatement: 12,
		TypePolicyDocument: 12,
		TypeScreenshot:     6,
		TypeCorrespondence: 12,
	}
	for typ, months := range cases {
		assert.Equal(t, months, typ.ExpiryMonths(), string(typ))
		assert.True(t, typ.Valid())
	}
	assert.False(t, Type("warranty_card").Valid())
	assert.Zero(t, Type("warranty_card").ExpiryMonths())
}

func TestAllowedMIME(t *testing.T) {
	assert.True(t, AllowedMIME(MIMEPDF))
	assert.True(t, AllowedMIME(MIMEPNG))
	assert.True(t, AllowedMIME(MIMEJPEG))
	assert.False(t, AllowedMIME("text/plain"))
	assert.False(t, AllowedMIME(""))
}
