package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"contact-metrics/cli"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const events = `Data,Hora,Colaborador,Setor,Portal,Transportadora,Motivo,Motivo_CRM,Numero_Pedido,Nota_Fiscal
04/03/2024,09:00:00,ana,SAC,Site,Correios,Atraso,Entrega,PED-1,
04/03/2024,09:05:00,ana,SAC,Site,Correios,Atraso,Entrega,PED-1,
04/03/2024,14:00:00,bia,Pendência,Site,Correios,Cancelamento,Entrega,PED-1,
05/03/2024,10:00:00,bia,Pendência,Telefone,Jadlog,Extravio,Entrega,,NF-9
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DYNAMO_MODE", "none")
	t.Setenv("CONTACT_METRICS_CONFIG", "")

	var stdout, stderr bytes.Buffer
	cmd := cli.NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(events))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(events), 0o644))
	return path
}

func TestReport(t *testing.T) {
	input := writeInput(t)

	tests := map[string]struct {
		args     []string
		contains []string
	}{
		"Text": {
			args:     []string{"report", "--input", input, "--now", "2024-03-10 12:00"},
			contains: []string{"INPUT : rows=4 dropped=0 events=4", "RECURRENCE : unique=2 recurring=1"},
		},
		"JSON": {
			args:     []string{"report", "--input", input, "--format", "json", "--now", "2024-03-10 12:00"},
			contains: []string{`"reference_id": "PED-1"`, `"episode_count": 2`},
		},
		"CSVTableWithDelimiter": {
			args:     []string{"report", "-i", input, "-f", "csv", "-t", "episodes", "-d", ";", "--now", "2024-03-10 12:00"},
			contains: []string{"reference_id;episode_count;total_raw_contacts", "PED-1;2;3;", "NF-9;1;1;"},
		},
		"FilteredByDate": {
			args:     []string{"report", "-i", input, "-f", "csv", "-t", "episodes", "--date", "2024-03-05", "--now", "2024-03-10 12:00"},
			contains: []string{"NF-9,1,1,"},
		},
		"Stdin": {
			args:     []string{"report", "--input", "-", "-f", "csv", "-t", "handle_times", "--now", "2024-03-10 12:00"},
			contains: []string{"ana,2,1,5.00,false"},
		},
		"Persist": {
			args:     []string{"report", "--input", input, "--persist", "--now", "2024-03-10 12:00"},
			contains: []string{"CAPACITY"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, stdout, s)
			}
		})
	}
}

func TestReport_Errors(t *testing.T) {
	input := writeInput(t)

	tests := map[string]struct {
		args    []string
		message string
	}{
		"MissingInput":   {args: []string{"report"}, message: `required flag(s) "input" not set`},
		"InvalidFormat":  {args: []string{"report", "-i", input, "-f", "xml"}, message: "format must be one of"},
		"UnknownTable":   {args: []string{"report", "-i", input, "-f", "csv", "-t", "schedule"}, message: "unknown table"},
		"BadDelimiter":   {args: []string{"report", "-i", input, "-d", ";;"}, message: "invalid delimiter"},
		"BadNow":         {args: []string{"report", "-i", input, "--now", "later"}, message: "invalid --now"},
		"MissingFile":    {args: []string{"report", "-i", filepath.Join(t.TempDir(), "none.csv")}, message: "open input"},
		"ReversedFilter": {args: []string{"report", "-i", input, "--from", "2024-03-05", "--to", "2024-03-01"}, message: "before from date"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestReport_InvalidConfig(t *testing.T) {
	t.Setenv("UTILIZATION_FACTOR", "lots")
	_, _, err := execute(t, "report", "--input", writeInput(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid UTILIZATION_FACTOR")
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "contact-metrics "+cli.Version+"\n", stdout)
}
