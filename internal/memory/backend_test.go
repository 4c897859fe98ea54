package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/schema"
	"github.com/tordrt/foodstats/internal/snapshot"
	"github.com/tordrt/foodstats/internal/snapshot/snapshottest"
)

var fixtureToday = plan.NewEnv(snapshottest.Today)

func fixture(t *testing.T) *snapshot.Snapshot {
	return snapshottest.Sample(t)
}

func TestQuestions(t *testing.T) {
	tests := []struct {
		id      int
		columns []string
		rows    [][]any
	}{
		{
			id:      1,
			columns: []string{"Provider_ID", "Name", "Type", "City", "Contact"},
			rows: [][]any{
				{int64(1), "Gray Inc", "Restaurant", "Chennai", nil},
				{int64(2), "Apex", "Grocery Store", "Mumbai", nil},
				{int64(3), "Gray Inc", "Supermarket", "Chennai", nil},
				{int64(4), "Zed Foods", "Restaurant", "Delhi", nil},
			},
		},
		{
			id:      2,
			columns: []string{"City", "Provider_Count"},
			rows:    [][]any{{"Chennai", int64(2)}, {"Delhi", int64(1)}, {"Mumbai", int64(1)}},
		},
		{
			id:      3,
			columns: []string{"Name", "Total_Listings"},
			rows:    [][]any{{"Gray Inc", int64(2)}, {"Apex", int64(1)}, {"Gray Inc", int64(1)}},
		},
		{
			id:      4,
			columns: []string{"Name", "Total_Claims"},
			rows:    [][]any{{"Gray Inc", int64(3)}, {"Apex", int64(1)}},
		},
		{
			id:      5,
			columns: []string{"Name", "Expired_Listings"},
			rows:    [][]any{{"Apex", int64(1)}, {"Gray Inc", int64(1)}},
		},
		{
			id:      6,
			columns: []string{"Name", "Avg_Quantity"},
			rows:    [][]any{{"Gray Inc", 15.0}, {"Gray Inc", 7.0}, {"Apex", 5.0}},
		},
		{
			id:      7,
			columns: []string{"Name", "Unique_Receivers"},
			rows:    [][]any{{"Gray Inc", int64(2)}},
		},
		{
			id:      8,
			columns: []string{"Name", "Contribution_Percentage"},
			rows:    [][]any{{"Gray Inc", 50.0}, {"Apex", 25.0}, {"Gray Inc", 25.0}},
		},
		{
			id:      9,
			columns: []string{"Name"},
			rows:    [][]any{{"Gray Inc"}, {"Zed Foods"}},
		},
		{
			id:      10,
			columns: []string{"City", "Total_Claims"},
			rows:    [][]any{{"Chennai", int64(3)}, {"Mumbai", int64(1)}},
		},
		{
			id:      11,
			columns: []string{"Name", "Completed_Claims"},
			rows:    [][]any{{"Gray Inc", int64(2)}},
		},
		{
			id:      12,
			columns: []string{"Name", "Status", "Count"},
			rows: [][]any{
				{"Apex", "Cancelled", int64(1)},
				{"Gray Inc", "Completed", int64(2)},
				{"Gray Inc", "Pending", int64(1)},
			},
		},
	}

	b := NewBackend(fixture(t), nil)
	for _, tt := range tests {
		q, err := plan.QuestionByID(tt.id)
		require.NoError(t, err)
		t.Run(q.Title, func(t *testing.T) {
			res, err := b.Execute(context.Background(), q.Plan, fixtureToday)
			require.NoError(t, err)
			assert.Equal(t, tt.columns, res.Columns)
			assert.Equal(t, tt.rows, res.Rows)
		})
	}
}

func TestExpiryBoundary(t *testing.T) {
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	snap, err := snapshot.NewBuilder("expiry").
		Provider(1, "Yesterday", "Restaurant", "Chennai", "").
		Provider(2, "Today", "Restaurant", "Chennai", "").
		Provider(3, "Tomorrow", "Restaurant", "Chennai", "").
		Listing(1, 1, 1, "2025-06-14", "Vegan", "Chennai").
		Listing(2, 2, 1, "2025-06-15", "Vegan", "Chennai").
		Listing(3, 3, 1, "2025-06-16", "Vegan", "Chennai").
		Build()
	require.NoError(t, err)

	q, err := plan.QuestionByID(5)
	require.NoError(t, err)
	res, err := NewBackend(snap, nil).Execute(context.Background(), q.Plan, plan.NewEnv(today))
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Yesterday", int64(1)}}, res.Rows)
}

func TestPercentageCountsOrphanListings(t *testing.T) {
	b := NewBackend(fixture(t), nil)
	q, err := plan.QuestionByID(8)
	require.NoError(t, err)

	res, err := b.Execute(context.Background(), q.Plan, fixtureToday)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, sumColumn(t, res.ColumnValues("Contribution_Percentage")), 1e-9)

	withOrphan, err := snapshot.NewBuilder("orphan").
		Provider(1, "Gray Inc", "Restaurant", "Chennai", "").
		Listing(1, 1, 1, "2025-01-01", "Vegan", "Chennai").
		Listing(2, 77, 1, "2025-01-01", "Vegan", "Chennai").
		Build()
	require.NoError(t, err)
	b.Replace(withOrphan)

	res, err = b.Execute(context.Background(), q.Plan, fixtureToday)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Gray Inc", 50.0}}, res.Rows)
}

func sumColumn(t *testing.T, values []any) float64 {
	t.Helper()
	var total float64
	for _, v := range values {
		f, ok := v.(float64)
		require.True(t, ok, "value %v is %T", v, v)
		total += f
	}
	return total
}

func TestViews(t *testing.T) {
	tests := []struct {
		name string
		opts plan.ViewOptions
		rows [][]any
	}{
		{
			name: "claim_status",
			rows: [][]any{{"Completed", int64(3)}, {"Cancelled", int64(1)}, {"Pending", int64(1)}},
		},
		{
			name: "listings_over_time",
			rows: [][]any{{"2025-01-01", int64(1)}, {"2025-01-10", int64(1)}, {"2025-03-01", int64(1)}},
		},
		{
			name: "claims_trend",
			rows: [][]any{{"2025-01-01", int64(1)}, {"2025-01-02", int64(2)}, {"2025-01-03", int64(2)}},
		},
		{
			name: "claims_by_city",
			opts: plan.ViewOptions{Top: 1},
			rows: [][]any{{"Chennai", int64(3)}},
		},
		{
			name: "listings_by_food_type",
			opts: plan.ViewOptions{FoodType: "Vegan"},
			rows: [][]any{{"Vegan", int64(2)}},
		},
		{
			name: "quantity_vs_expiry",
			rows: [][]any{{"2025-01-01", int64(10)}, {"2025-01-10", int64(5)}, {"2025-03-01", int64(20)}},
		},
	}

	b := NewBackend(fixture(t), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := plan.ViewByName(tt.name)
			require.NoError(t, err)
			res, err := b.Execute(context.Background(), v.Plan(tt.opts), fixtureToday)
			require.NoError(t, err)
			assert.Equal(t, tt.rows, res.Rows)
		})
	}
}

func TestNullGroupKey(t *testing.T) {
	snap, err := snapshot.NewBuilder("nulls").
		Provider(1, "A", "Restaurant", "", "").
		Provider(2, "B", "Restaurant", "Chennai", "").
		Provider(3, "C", "Restaurant", "", "").
		Build()
	require.NoError(t, err)

	q, err := plan.QuestionByID(2)
	require.NoError(t, err)
	res, err := NewBackend(snap, nil).Execute(context.Background(), q.Plan, fixtureToday)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{nil, int64(2)}, {"Chennai", int64(1)}}, res.Rows)

	p := &plan.Plan{
		From:    schema.Providers,
		Fields:  []plan.Field{{Name: "City", Column: plan.Col(schema.Providers, "City")}},
		OrderBy: []plan.Order{{Field: "City", Desc: true}},
	}
	res, err = NewBackend(snap, nil).Execute(context.Background(), p, fixtureToday)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Chennai"}, {nil}, {nil}}, res.Rows, "NULLs sort last when descending")
}

func TestCountOfEmptyTable(t *testing.T) {
	snap, err := snapshot.NewBuilder("empty").Build()
	require.NoError(t, err)

	p, err := plan.CountPlan(schema.Claims)
	require.NoError(t, err)
	res, err := NewBackend(snap, nil).Execute(context.Background(), p, fixtureToday)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(0)}}, res.Rows)
}

func TestTablePreview(t *testing.T) {
	p, err := plan.TablePlan(schema.Claims, 2)
	require.NoError(t, err)
	res, err := NewBackend(fixture(t), nil).Execute(context.Background(), p, fixtureToday)
	require.NoError(t, err)
	assert.Equal(t, []string{"Claim_ID", "Food_ID", "Receiver_ID", "Status", "Timestamp"}, res.Columns)
	assert.Equal(t, [][]any{
		{int64(100), int64(10), int64(1), "Completed", "2025-01-01 10:00:00"},
		{int64(101), int64(10), int64(2), "Pending", "2025-01-02 11:00:00"},
	}, res.Rows)
}

func TestExecuteHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, err := plan.QuestionByID(1)
	require.NoError(t, err)
	b := NewBackend(fixture(t), nil)

	_, err = b.Execute(ctx, q.Plan, fixtureToday)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = b.Adhoc(ctx, "providers", fixtureToday)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteRejectsInvalidPlan(t *testing.T) {
	_, err := NewBackend(fixture(t), nil).Execute(context.Background(), &plan.Plan{From: "users"}, fixtureToday)
	assert.True(t, errors.Is(err, plan.ErrUnknownTable))
}
