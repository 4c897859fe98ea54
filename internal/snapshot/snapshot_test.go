package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/foodstats/internal/schema"
)

func TestParseText(t *testing.T) {
	tests := []struct {
		name    string
		kind    schema.Kind
		in      string
		want    any
		wantErr bool
	}{
		{name: "int", kind: schema.KindInt, in: "42", want: int64(42)},
		{name: "int written as float", kind: schema.KindInt, in: "42.0", want: int64(42)},
		{name: "fractional int", kind: schema.KindInt, in: "4.5", wantErr: true},
		{name: "float", kind: schema.KindFloat, in: "2.5", want: 2.5},
		{name: "text trimmed", kind: schema.KindText, in: "  Chennai ", want: "Chennai"},
		{name: "empty is null", kind: schema.KindText, in: "", want: nil},
		{name: "date", kind: schema.KindDate, in: "2025-03-17", want: time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)},
		{name: "date from datetime", kind: schema.KindDate, in: "2025-03-17 08:30:00", want: time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)},
		{name: "us date", kind: schema.KindDate, in: "3/17/2025", want: time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)},
		{name: "datetime", kind: schema.KindDateTime, in: "2025-03-17 08:30:00", want: time.Date(2025, 3, 17, 8, 30, 0, 0, time.UTC)},
		{name: "bad date", kind: schema.KindDate, in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseText(tt.kind, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSV(t *testing.T) {
	in := "\ufeffFood_ID,Food_Name,Quantity,Expiry_Date,Provider_ID,Provider_Type,Location,Food_Type,Meal_Type,Extra\n" +
		"1,Bread,43,2025-03-17,110,Restaurant,South Kathryn,Vegetarian,Breakfast,x\n" +
		"2,Soup,5,,12,Grocery Store,,Vegan,Dinner,y\n"

	table, err := ReadCSV(schema.FoodListings, strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	assert.Equal(t, int64(1), table.Rows[0][0])
	assert.Equal(t, "Bread", table.Rows[0][1])
	assert.Equal(t, int64(43), table.Rows[0][2])
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), table.Rows[0][3])
	assert.Nil(t, table.Rows[1][3], "empty expiry is NULL")
	assert.Nil(t, table.Rows[1][6], "empty location is NULL")
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		table string
		in    string
	}{
		{name: "missing required column", table: schema.Providers, in: "Provider_ID,Name,Type,City\n1,a,b,c\n"},
		{name: "bad id", table: schema.Providers, in: "Provider_ID,Name,Type,City,Contact\nx,a,b,c,d\n"},
		{name: "missing id", table: schema.Claims, in: "Claim_ID,Food_ID,Receiver_ID,Status,Timestamp\n1,,3,Pending,\n"},
		{name: "empty file", table: schema.Claims, in: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(tt.table, strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestReadCSVOptionalColumns(t *testing.T) {
	table, err := ReadCSV(schema.Receivers, strings.NewReader("Receiver_ID,Name,City\n7,Hope NGO,Chennai\n"))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7), "Hope NGO", nil, "Chennai", nil}, table.Rows[0])
}

func TestLoadCSVDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"providers_final.csv": "Provider_ID,Name,Type,City,Contact\n1,Gray Inc,Restaurant,Chennai,555\n",
		"receivers.csv":       "Receiver_ID,Name,Type,City,Contact\n1,Hope,NGO,Chennai,556\n",
		"food_listings.csv":   "Food_ID,Quantity,Expiry_Date,Provider_ID,Location,Food_Type\n1,10,2025-03-17,1,Chennai,Vegan\n",
		"claims.csv":          "Claim_ID,Food_ID,Receiver_ID,Status,Timestamp\n1,1,1,Completed,2025-03-05 05:43:00\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	snap, err := LoadCSVDir(dir)
	require.NoError(t, err)
	for _, name := range schema.Dataset.TableNames() {
		assert.Equal(t, 1, snap.Count(name), name)
	}
	assert.Equal(t, "csv://"+dir, snap.Source)

	require.NoError(t, os.Remove(filepath.Join(dir, "claims.csv")))
	_, err = LoadCSVDir(dir)
	assert.ErrorContains(t, err, "no CSV file for table claims")
}

func TestBuilder(t *testing.T) {
	snap, err := NewBuilder("fixture").
		Provider(1, "P1", "Restaurant", "Chennai", "").
		Receiver(1, "R1", "Chennai").
		Listing(1, 1, 10, "2025-01-02", "Vegan", "Chennai").
		Claim(1, 1, 1, "Completed", "2025-01-01 10:00:00").
		Build()
	require.NoError(t, err)

	providers, ok := snap.Table(schema.Providers)
	require.True(t, ok)
	assert.Nil(t, providers.Rows[0][4], "empty contact is NULL")

	_, err = NewBuilder("bad").Listing(1, 1, 10, "not a date", "Vegan", "Chennai").Build()
	assert.Error(t, err)

	_, err = New("partial")
	assert.ErrorContains(t, err, "missing from snapshot")
}

func TestWriteCSVDirRoundTrip(t *testing.T) {
	snap, err := NewBuilder("round trip").
		Provider(1, "Gray Inc", "Restaurant", "Chennai", "+91 44, ext 2").
		Receiver(1, "R1", "Chennai").
		Listing(10, 1, 10, "2025-01-01", "Vegan", "Chennai").
		Listing(11, 1, 20, "", "Vegetarian", "Chennai").
		Claim(100, 10, 1, "Completed", "2025-01-01 10:00:00").
		Build()
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "export")
	require.NoError(t, WriteCSVDir(snap, dir))

	header, err := os.ReadFile(filepath.Join(dir, "claims.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(header), "Claim_ID,Food_ID,Receiver_ID,Status,Timestamp\n"))

	loaded, err := LoadCSVDir(dir)
	require.NoError(t, err)
	for _, name := range schema.Dataset.TableNames() {
		want, _ := snap.Table(name)
		got, _ := loaded.Table(name)
		assert.Equal(t, want.Rows, got.Rows, name)
	}
}
