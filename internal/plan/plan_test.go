package plan

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/foodstats/internal/schema"
)

func TestCatalogPlansValidate(t *testing.T) {
	for _, q := range Questions() {
		if err := q.Plan.Validate(); err != nil {
			t.Errorf("question %d: %v", q.ID, err)
		}
	}
	for _, v := range Views() {
		if err := v.Plan(ViewOptions{Top: 5, FoodType: "Vegan"}).Validate(); err != nil {
			t.Errorf("view %s: %v", v.Name, err)
		}
	}
	for _, table := range schema.Dataset.TableNames() {
		p, err := TablePlan(table, DefaultPreviewRows)
		require.NoError(t, err)
		assert.NoError(t, p.Validate(), table)

		p, err = CountPlan(table)
		require.NoError(t, err)
		assert.NoError(t, p.Validate(), table)
	}
}

func TestQuestionByID(t *testing.T) {
	tests := []struct {
		name    string
		id      int
		wantErr bool
	}{
		{name: "first", id: 1},
		{name: "last", id: 12},
		{name: "zero", id: 0, wantErr: true},
		{name: "out of range", id: 99, wantErr: true},
		{name: "negative", id: -3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := QuestionByID(tt.id)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownQuery))
				assert.Contains(t, err.Error(), "unknown query")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, q.ID)
			assert.NotEmpty(t, q.Description)
		})
	}
}

func TestQuestionColumns(t *testing.T) {
	want := map[int][]string{
		1:  {"Provider_ID", "Name", "Type", "City", "Contact"},
		2:  {"City", "Provider_Count"},
		3:  {"Name", "Total_Listings"},
		4:  {"Name", "Total_Claims"},
		5:  {"Name", "Expired_Listings"},
		6:  {"Name", "Avg_Quantity"},
		7:  {"Name", "Unique_Receivers"},
		8:  {"Name", "Contribution_Percentage"},
		9:  {"Name"},
		10: {"City", "Total_Claims"},
		11: {"Name", "Completed_Claims"},
		12: {"Name", "Status", "Count"},
	}
	qs := Questions()
	require.Len(t, qs, len(want))
	for _, q := range qs {
		assert.Equal(t, want[q.ID], q.Plan.OutputColumns(), "question %d", q.ID)
	}
}

func TestViewOptions(t *testing.T) {
	v, err := ViewByName("providers_by_city")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Plan(ViewOptions{}).Limit)
	assert.Equal(t, 5, v.Plan(ViewOptions{Top: 5}).Limit)

	ft, err := ViewByName("listings_by_food_type")
	require.NoError(t, err)
	p := ft.Plan(ViewOptions{FoodType: "Vegan", Top: 3})
	require.Len(t, p.Filters, 1)
	assert.Equal(t, "Vegan", p.Filters[0].Value)
	assert.Equal(t, 0, p.Limit, "top does not apply to the food type view")
	assert.Empty(t, ft.Plan(ViewOptions{}).Filters, "options must not leak into the catalog")

	_, err = ViewByName("pie_in_the_sky")
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		plan *Plan
	}{
		{
			name: "unknown table",
			plan: &Plan{From: "donors", Fields: []Field{{Name: "n", Agg: AggCountRows}}},
		},
		{
			name: "column out of scope",
			plan: &Plan{From: schema.Providers, Fields: []Field{{Name: "q", Column: Col(schema.FoodListings, "Quantity")}}},
		},
		{
			name: "ungrouped field",
			plan: &Plan{
				From: schema.Providers,
				Fields: []Field{
					{Name: "City", Column: Col(schema.Providers, "City")},
					{Name: "n", Agg: AggCountRows},
				},
			},
		},
		{
			name: "order by unknown",
			plan: &Plan{
				From:    schema.Providers,
				Fields:  []Field{{Name: "City", Column: Col(schema.Providers, "City")}},
				OrderBy: []Order{{Field: "Town"}},
			},
		},
		{
			name: "join on wrong table",
			plan: &Plan{
				From:   schema.Providers,
				Joins:  []Join{{Table: schema.Claims, Left: Col(schema.Providers, "Provider_ID"), Right: Col(schema.FoodListings, "Provider_ID")}},
				Fields: []Field{{Name: "n", Agg: AggCountRows}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.plan.Validate())
		})
	}
}

func TestNewEnv(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	env := NewEnv(time.Date(2025, 3, 9, 23, 45, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), env.Today)
}

func TestSyntaxError(t *testing.T) {
	err := Syntaxf(4, "unexpected %q", "|")
	assert.ErrorIs(t, err, ErrSyntax)
	assert.Equal(t, `syntax error at position 4: unexpected "|"`, err.Error())
	assert.Equal(t, "syntax error: empty", Syntaxf(-1, "empty").Error())
}
