package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/dispatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockCSV = `id,title,description,labels,assignee
1,Fix login bug,Error on login page,"[""bug"",""urgent""]",alice
2,API endpoint broken,Backend service returns 500,"[""bug"",""backend""]",bob
3,New feature request,Add dark mode support,"[""feature"",""ui""]",carol
`

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(mockCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, model.TicketRecord{
		ID:          "1",
		Title:       "Fix login bug",
		Description: "Error on login page",
		Labels:      []string{"bug", "urgent"},
		Assignee:    "alice",
	}, records[0])
	assert.Equal(t, "carol", records[2].Assignee)
}

func TestReadCSV_HeaderHandling(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		input   string
		want    []model.TicketRecord
	}{
		{
			name:  "reordered and mixed case columns",
			input: "Assignee, Title ,ID\nalice,login error,7\n",
			want:  []model.TicketRecord{{ID: "7", Title: "login error", Assignee: "alice"}},
		},
		{
			name:  "byte order mark",
			input: "\ufeffid,title,assignee\n1,vpn down,dave\n",
			want:  []model.TicketRecord{{ID: "1", Title: "vpn down", Assignee: "dave"}},
		},
		{
			name:  "short rows",
			input: "id,title,description,labels,assignee\n1,only title\n",
			want:  []model.TicketRecord{{ID: "1", Title: "only title"}},
		},
		{
			name:    "missing assignee column",
			input:   "id,title\n1,x\n",
			wantErr: ErrMissingColumn,
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCSV(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSV_MalformedLabelsKeepRow(t *testing.T) {
	input := "id,title,labels,assignee\n" +
		"1,login,\"bug, urgent\",alice\n" +
		"2,api,[backend,bob\n"

	records, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"bug", "urgent"}, records[0].Labels)
	assert.Equal(t, "bob", records[1].Assignee)
}

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   []string
		wantOK bool
	}{
		{name: "json array", raw: `["bug","urgent"]`, want: []string{"bug", "urgent"}, wantOK: true},
		{name: "empty array", raw: `[]`, want: []string{}, wantOK: true},
		{name: "blank", raw: "  ", want: nil, wantOK: true},
		{name: "wrapped and escaped", raw: `"[\"bug\",\"ui\"]"`, want: []string{"bug", "ui"}, wantOK: true},
		{name: "plain comma list", raw: "bug, urgent ,ui", want: []string{"bug", "urgent", "ui"}, wantOK: false},
		{name: "unterminated array", raw: `["bug", "ui"`, want: []string{"bug", "ui"}, wantOK: false},
		{name: "non-string elements", raw: `[1, "two"]`, want: []string{"1", "two"}, wantOK: false},
		{name: "single word", raw: "frontend", want: []string{"frontend"}, wantOK: false},
		{name: "backslashes stripped", raw: `[\bug\]`, want: []string{"bug"}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLabels(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.csv")
	require.NoError(t, os.WriteFile(path, []byte(mockCSV), 0600))

	records, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	_, err = ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type fakeTicketStore struct {
	err     error
	tickets []model.TicketRecord
}

func (f *fakeTicketStore) GetTickets(context.Context) ([]model.TicketRecord, error) {
	return f.tickets, f.err
}

func (f *fakeTicketStore) CountTickets(context.Context) (int, error) {
	return len(f.tickets), f.err
}

func TestSources(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "issues.csv")
	require.NoError(t, os.WriteFile(path, []byte(mockCSV), 0600))

	csvSource := NewCSVSource(path)
	assert.Equal(t, "csv:"+path, csvSource.String())
	records, err := csvSource.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = csvSource.Records(canceled)
	assert.ErrorIs(t, err, context.Canceled)

	store := &fakeTicketStore{tickets: []model.TicketRecord{{ID: "9", Title: "x", Assignee: "erin"}}}
	dbSource := NewStoreSource(store)
	assert.Equal(t, "db", dbSource.String())
	records, err = dbSource.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.tickets, records)

	boom := errors.New("boom")
	_, err = NewStoreSource(&fakeTicketStore{err: boom}).Records(ctx)
	assert.ErrorIs(t, err, boom)
}
