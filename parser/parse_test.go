package parser_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	customerrors "contact-metrics/errors"
	"contact-metrics/models"
	"contact-metrics/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "timestamp,reference_id,agent_id,sector,reason,crm_reason,carrier,channel\n"

func opts() parser.Options {
	return parser.Options{Location: time.UTC, UnknownLabel: "Não Informado"}
}

func TestParse(t *testing.T) {
	tests := map[string]struct {
		input       string
		wantEvents  int
		wantDropped int
		check       func(t *testing.T, res *parser.Result)
	}{
		"SingleRow": {
			input:      header + "2024-03-04 09:15:00,R1,ana,SAC,Atraso,Entrega,Correios,Site\n",
			wantEvents: 1,
			check: func(t *testing.T, res *parser.Result) {
				ev := res.Events[0]
				assert.Equal(t, time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC), ev.Timestamp)
				assert.Equal(t, "R1", ev.Reference.ID)
				assert.True(t, ev.Reference.Known())
				assert.Equal(t, "ana", ev.AgentID)
				assert.Equal(t, models.SectorSAC, ev.Sector)
				assert.Equal(t, "Atraso", ev.Reason)
				assert.Equal(t, "Correios", ev.Carrier)
				assert.Equal(t, "Site", ev.Channel)
				assert.Equal(t, 2, ev.Line)
			},
		},
		"DayFirstDate": {
			input:      header + "04/03/2024 09:15,R1,ana,SAC,Atraso,Entrega,Correios,Site\n",
			wantEvents: 1,
			check: func(t *testing.T, res *parser.Result) {
				assert.Equal(t, time.March, res.Events[0].Timestamp.Month())
				assert.Equal(t, 4, res.Events[0].Timestamp.Day())
			},
		},
		"CommentsAndColumnOrder": {
			input: "# exported from sheet\n" +
				"channel,carrier,crm_reason,reason,sector,agent_id,reference_id,timestamp\n" +
				"Site,Jadlog,Troca,Defeito,Pendência,bia,R9,2024-03-04T10:00:00Z\n",
			wantEvents: 1,
			check: func(t *testing.T, res *parser.Result) {
				assert.Equal(t, "R9", res.Events[0].Reference.ID)
				assert.Equal(t, models.SectorBacklog, res.Events[0].Sector)
				assert.Equal(t, "Jadlog", res.Events[0].Carrier)
			},
		},
		"UnparseableRowDropped": {
			input: header +
				"2024-03-04 09:15:00,R1,ana,SAC,Atraso,Entrega,Correios,Site\n" +
				"yesterday,R2,ana,SAC,Atraso,Entrega,Correios,Site\n",
			wantEvents:  1,
			wantDropped: 1,
			check: func(t *testing.T, res *parser.Result) {
				assert.Equal(t, 2, res.TotalRows)
				assert.Equal(t, 3, res.Dropped[0].Line)
				assert.Equal(t, "invalid_timestamp", res.Dropped[0].Reason)
				assert.True(t, errors.Is(res.Dropped[0].Err, customerrors.ErrInvalidTimestamp))
			},
		},
		"ShortRowDropped": {
			input: header +
				"2024-03-04 09:15:00,R1,ana,SAC,Atraso,Entrega,Correios,Site\n" +
				"2024-03-04 09:20:00,R2,ana\n",
			wantEvents:  1,
			wantDropped: 1,
			check: func(t *testing.T, res *parser.Result) {
				assert.True(t, errors.Is(res.Dropped[0].Err, customerrors.ErrInvalidFieldCount))
			},
		},
		"HeaderOnly": {
			input:      header,
			wantEvents: 0,
		},
		"EmptyInput": {
			input:      "",
			wantEvents: 0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := parser.Parse(strings.NewReader(tt.input), opts())
			require.NoError(t, err)
			assert.Len(t, res.Events, tt.wantEvents)
			assert.Len(t, res.Dropped, tt.wantDropped)
			if tt.check != nil {
				tt.check(t, res)
			}
		})
	}
}

func TestParse_SpreadsheetHeaders(t *testing.T) {
	input := "Data,Hora,Numero_Pedido,Nota_Fiscal,Colaborador,Setor,Portal,Transportadora,Motivo,Motivo_CRM\n" +
		"18/10/2026,08:05:00,Não Informado,NF-77,carla,SAC 1,Mercado Livre,Correios,Cancelamento; urgente,Outros\n" +
		"18/10/2026,08:30,,,carla,SAC 1,Mercado Livre,Correios,\"Troca\nproduto\",Outros\n"

	res, err := parser.Parse(strings.NewReader(input), opts())
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	first := res.Events[0]
	assert.Equal(t, time.Date(2026, 10, 18, 8, 5, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, models.Reference{ID: "NF-77", Source: models.ReferenceFromInvoice}, first.Reference)
	assert.Equal(t, "Cancelamento, urgente", first.Reason)
	assert.Equal(t, "Mercado Livre", first.Channel)

	second := res.Events[1]
	assert.False(t, second.Reference.Known())
	assert.Equal(t, "Não Informado", second.OrderNumber)
	assert.Equal(t, "Troca produto", second.Reason)
}

func TestParse_Semicolon(t *testing.T) {
	input := "timestamp;reference_id;agent_id;sector;reason;crm_reason;carrier;channel\n" +
		"2024-03-04 09:15:00;R1;ana;SAC;Atraso;Entrega;Correios;Site\n"

	o := opts()
	o.Comma = ';'
	res, err := parser.Parse(strings.NewReader(input), o)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Site", res.Events[0].Channel)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]struct {
		input      string
		wantErr    error
		wantColumn string
	}{
		"MissingAgentColumn": {
			input:      "timestamp,reference_id,sector,reason,crm_reason,carrier,channel\n",
			wantErr:    customerrors.ErrMissingColumn,
			wantColumn: "agent_id",
		},
		"MissingTimestampColumn": {
			input:      "reference_id,agent_id,sector,reason,crm_reason,carrier,channel\n",
			wantErr:    customerrors.ErrMissingColumn,
			wantColumn: "timestamp",
		},
		"MissingReferenceColumns": {
			input:      "timestamp,agent_id,sector,reason,crm_reason,carrier,channel\n",
			wantErr:    customerrors.ErrMissingColumn,
			wantColumn: "reference_id",
		},
		"EveryRowUnparseable": {
			input: header +
				"not-a-date,R1,ana,SAC,Atraso,Entrega,Correios,Site\n" +
				"also bad,R2,ana,SAC,Atraso,Entrega,Correios,Site\n",
			wantErr: customerrors.ErrNoValidRows,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := parser.Parse(strings.NewReader(tt.input), opts())
			assert.Nil(t, res)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			if tt.wantColumn != "" {
				var colErr *customerrors.ColumnError
				require.True(t, errors.As(err, &colErr))
				assert.Equal(t, tt.wantColumn, colErr.Column)
				assert.Contains(t, err.Error(), tt.wantColumn)
			} else {
				var parseErr *customerrors.ParseError
				require.True(t, errors.As(err, &parseErr))
				assert.Equal(t, 2, parseErr.Line)
			}
		})
	}
}
