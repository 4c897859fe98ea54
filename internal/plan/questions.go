package plan

import (
	"fmt"

	"github.com/tordrt/foodstats/internal/schema"
)

// Question is one of the fixed analytical questions of the dashboard.
type Question struct {
	ID          int
	Title       string
	Description string
	Plan        *Plan
}

var (
	listingsOfProvider = Join{
		Table: schema.FoodListings,
		Left:  Col(schema.Providers, "Provider_ID"),
		Right: Col(schema.FoodListings, "Provider_ID"),
	}
	claimsOfListing = Join{
		Table: schema.Claims,
		Left:  Col(schema.FoodListings, "Food_ID"),
		Right: Col(schema.Claims, "Food_ID"),
	}
)

// perProvider groups on (Provider_ID, Name) so that providers sharing a
// name stay distinct. The id is hidden from the output.
func perProvider(metric Field, extra ...Field) []Field {
	fields := []Field{
		{Name: "Provider_ID", Column: Col(schema.Providers, "Provider_ID"), Hidden: true},
		{Name: "Name", Column: Col(schema.Providers, "Name")},
	}
	fields = append(fields, extra...)
	return append(fields, metric)
}

var providerGroup = []string{"Provider_ID", "Name"}

// rankProviders orders by metric descending, then by name and id so that
// ties resolve the same way in every backend.
func rankProviders(metric string) []Order {
	return []Order{{Field: metric, Desc: true}, {Field: "Name"}, {Field: "Provider_ID"}}
}

var questions = []Question{
	{
		ID:          1,
		Title:       "List all providers",
		Description: "Shows a preview of provider data (first 20 rows).",
		Plan: &Plan{
			From: schema.Providers,
			Fields: []Field{
				{Name: "Provider_ID", Column: Col(schema.Providers, "Provider_ID")},
				{Name: "Name", Column: Col(schema.Providers, "Name")},
				{Name: "Type", Column: Col(schema.Providers, "Type")},
				{Name: "City", Column: Col(schema.Providers, "City")},
				{Name: "Contact", Column: Col(schema.Providers, "Contact")},
			},
			OrderBy: []Order{{Field: "Provider_ID"}},
			Limit:   20,
		},
	},
	{
		ID:          2,
		Title:       "Count of providers by city",
		Description: "Number of providers in each city.",
		Plan: &Plan{
			From:    schema.Providers,
			GroupBy: []string{"City"},
			Fields: []Field{
				{Name: "City", Column: Col(schema.Providers, "City")},
				{Name: "Provider_Count", Agg: AggCountRows},
			},
			OrderBy: []Order{{Field: "Provider_Count", Desc: true}, {Field: "City"}},
		},
	},
	{
		ID:          3,
		Title:       "Providers with most listings",
		Description: "Top providers ranked by total food listings.",
		Plan: &Plan{
			From:    schema.Providers,
			Joins:   []Join{listingsOfProvider},
			GroupBy: providerGroup,
			Fields:  perProvider(Field{Name: "Total_Listings", Agg: AggCount, Column: Col(schema.FoodListings, "Food_ID")}),
			OrderBy: rankProviders("Total_Listings"),
			Limit:   10,
		},
	},
	{
		ID:          4,
		Title:       "Top 5 providers with maximum claims",
		Description: "Shows which providers have the most claims.",
		Plan: &Plan{
			From:    schema.Providers,
			Joins:   []Join{listingsOfProvider, claimsOfListing},
			GroupBy: providerGroup,
			Fields:  perProvider(Field{Name: "Total_Claims", Agg: AggCount, Column: Col(schema.Claims, "Claim_ID")}),
			OrderBy: rankProviders("Total_Claims"),
			Limit:   5,
		},
	},
	{
		ID:          5,
		Title:       "Providers with expired food listings",
		Description: "Lists providers whose food has expired.",
		Plan: &Plan{
			From:  schema.Providers,
			Joins: []Join{listingsOfProvider},
			Filters: []Filter{
				{Column: Col(schema.FoodListings, "Expiry_Date"), Op: OpLt, Param: ParamToday},
			},
			GroupBy: providerGroup,
			Fields:  perProvider(Field{Name: "Expired_Listings", Agg: AggCount, Column: Col(schema.FoodListings, "Food_ID")}),
			OrderBy: rankProviders("Expired_Listings"),
		},
	},
	{
		ID:          6,
		Title:       "Average food quantity provided per provider",
		Description: "Average food quantity listed per provider.",
		Plan: &Plan{
			From:    schema.Providers,
			Joins:   []Join{listingsOfProvider},
			GroupBy: providerGroup,
			Fields:  perProvider(Field{Name: "Avg_Quantity", Agg: AggAvg, Column: Col(schema.FoodListings, "Quantity")}),
			OrderBy: rankProviders("Avg_Quantity"),
		},
	},
	{
		ID:          7,
		Title:       "Provider with maximum unique receivers",
		Description: "Which provider serves the most unique receivers.",
		Plan: &Plan{
			From:    schema.Providers,
			Joins:   []Join{listingsOfProvider, claimsOfListing},
			GroupBy: providerGroup,
			Fields:  perProvider(Field{Name: "Unique_Receivers", Agg: AggCountDistinct, Column: Col(schema.Claims, "Receiver_ID")}),
			OrderBy: rankProviders("Unique_Receivers"),
			Limit:   1,
		},
	},
	{
		ID:          8,
		Title:       "Percentage contribution of each provider to total listings",
		Description: "Share of total listings per provider.",
		Plan: &Plan{
			From:    schema.Providers,
			Joins:   []Join{listingsOfProvider},
			GroupBy: providerGroup,
			Fields: perProvider(Field{
				Name:      "Contribution_Percentage",
				Agg:       AggPercent,
				Column:    Col(schema.FoodListings, "Food_ID"),
				PercentOf: schema.FoodListings,
			}),
			OrderBy: rankProviders("Contribution_Percentage"),
		},
	},
	{
		ID:          9,
		Title:       "Providers with zero claims",
		Description: "Providers whose listings were never claimed.",
		Plan: &Plan{
			From:    schema.Providers,
			Exclude: &AntiJoin{Joins: []Join{listingsOfProvider, claimsOfListing}},
			Fields: []Field{
				{Name: "Provider_ID", Column: Col(schema.Providers, "Provider_ID"), Hidden: true},
				{Name: "Name", Column: Col(schema.Providers, "Name")},
			},
			OrderBy: []Order{{Field: "Name"}, {Field: "Provider_ID"}},
		},
	},
	{
		ID:          10,
		Title:       "City-wise claim distribution for providers",
		Description: "How claims are distributed across cities.",
		Plan: &Plan{
			From:    schema.Providers,
			Joins:   []Join{listingsOfProvider, claimsOfListing},
			GroupBy: []string{"City"},
			Fields: []Field{
				{Name: "City", Column: Col(schema.Providers, "City")},
				{Name: "Total_Claims", Agg: AggCount, Column: Col(schema.Claims, "Claim_ID")},
			},
			OrderBy: []Order{{Field: "Total_Claims", Desc: true}, {Field: "City"}},
		},
	},
	{
		ID:          11,
		Title:       "Top providers by completed claims",
		Description: "Top providers ranked by completed claims.",
		Plan: &Plan{
			From:  schema.Providers,
			Joins: []Join{listingsOfProvider, claimsOfListing},
			Filters: []Filter{
				{Column: Col(schema.Claims, "Status"), Op: OpEq, Value: "Completed"},
			},
			GroupBy: providerGroup,
			Fields:  perProvider(Field{Name: "Completed_Claims", Agg: AggCount, Column: Col(schema.Claims, "Claim_ID")}),
			OrderBy: rankProviders("Completed_Claims"),
			Limit:   5,
		},
	},
	{
		ID:          12,
		Title:       "Claim status breakdown per provider",
		Description: "Shows claim status (Completed/Pending) by provider.",
		Plan: &Plan{
			From:    schema.Providers,
			Joins:   []Join{listingsOfProvider, claimsOfListing},
			GroupBy: []string{"Provider_ID", "Name", "Status"},
			Fields: perProvider(
				Field{Name: "Count", Agg: AggCountRows},
				Field{Name: "Status", Column: Col(schema.Claims, "Status")},
			),
			OrderBy: []Order{
				{Field: "Name"},
				{Field: "Provider_ID"},
				{Field: "Count", Desc: true},
				{Field: "Status"},
			},
		},
	},
}

// Questions returns the question catalog in id order.
func Questions() []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	return out
}

// QuestionByID looks up a question. Ids outside the catalog fail with
// ErrUnknownQuery.
func QuestionByID(id int) (Question, error) {
	for _, q := range questions {
		if q.ID == id {
			return q, nil
		}
	}
	return Question{}, fmt.Errorf("%w: %d", ErrUnknownQuery, id)
}
