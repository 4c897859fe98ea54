package plan

import (
	"fmt"

	"github.com/tordrt/foodstats/internal/schema"
)

// ChartKind names the chart a view is meant to be drawn as.
type ChartKind string

const (
	ChartBar     ChartKind = "bar"
	ChartHBar    ChartKind = "hbar"
	ChartPie     ChartKind = "pie"
	ChartLine    ChartKind = "line"
	ChartScatter ChartKind = "scatter"
	ChartArea    ChartKind = "area"
)

// Chart is rendering metadata for a view. X and Y name result columns.
type Chart struct {
	Kind  ChartKind `json:"kind"`
	X     string    `json:"x"`
	Y     string    `json:"y"`
	Color string    `json:"color,omitempty"`
}

// ViewOptions are the user-selectable filters of a view.
type ViewOptions struct {
	Top      int    // keep the first N rows; 0 keeps all
	FoodType string // restrict listings to one food type; "" keeps all
}

// FoodTypes are the food type filter choices offered by the dashboard.
var FoodTypes = []string{"Vegetarian", "Non-Vegetarian", "Vegan"}

// View is the dataset behind one chart of the dashboard.
type View struct {
	Name        string
	Title       string
	Description string
	Chart       Chart
	// TopOption and FoodTypeOption report which ViewOptions apply.
	TopOption      bool
	FoodTypeOption bool

	base *Plan
}

// Plan returns the plan for the view with opts applied.
func (v View) Plan(opts ViewOptions) *Plan {
	p := *v.base
	if v.TopOption && opts.Top > 0 {
		p.Limit = opts.Top
	}
	if v.FoodTypeOption && opts.FoodType != "" {
		p.Filters = append(append([]Filter(nil), p.Filters...), Filter{
			Column: Col(schema.FoodListings, "Food_Type"),
			Op:     OpEq,
			Value:  opts.FoodType,
		})
	}
	return &p
}

var views = []View{
	{
		Name:        "providers_by_city",
		Title:       "Providers by City",
		Description: "Number of providers in each city.",
		Chart:       Chart{Kind: ChartBar, X: "City", Y: "Provider_Count", Color: "#1f3b73"},
		TopOption:   true,
		base: &Plan{
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
		Name:        "claim_status",
		Title:       "Claim Status Distribution",
		Description: "Share of claims in each status.",
		Chart:       Chart{Kind: ChartPie, X: "Status", Y: "Count"},
		base: &Plan{
			From:    schema.Claims,
			GroupBy: []string{"Status"},
			Fields: []Field{
				{Name: "Status", Column: Col(schema.Claims, "Status")},
				{Name: "Count", Agg: AggCountRows},
			},
			OrderBy: []Order{{Field: "Count", Desc: true}, {Field: "Status"}},
		},
	},
	{
		Name:        "listings_over_time",
		Title:       "Listings Over Time",
		Description: "Listings per expiry date.",
		Chart:       Chart{Kind: ChartLine, X: "Date", Y: "Listings", Color: "#FF7F50"},
		base: &Plan{
			From: schema.FoodListings,
			Filters: []Filter{
				{Column: Col(schema.FoodListings, "Expiry_Date"), Op: OpNotNull},
			},
			GroupBy: []string{"Date"},
			Fields: []Field{
				{Name: "Date", Column: Col(schema.FoodListings, "Expiry_Date"), Transform: TransformDate},
				{Name: "Listings", Agg: AggCountRows},
			},
			OrderBy: []Order{{Field: "Date"}},
		},
	},
	{
		Name:        "claims_by_city",
		Title:       "Claims by City",
		Description: "Claims per listing location.",
		Chart:       Chart{Kind: ChartBar, X: "City", Y: "Total_Claims", Color: "#8B0000"},
		TopOption:   true,
		base: &Plan{
			From: schema.FoodListings,
			Joins: []Join{
				{
					Table: schema.Providers,
					Left:  Col(schema.FoodListings, "Provider_ID"),
					Right: Col(schema.Providers, "Provider_ID"),
				},
				claimsOfListing,
			},
			GroupBy: []string{"City"},
			Fields: []Field{
				{Name: "City", Column: Col(schema.FoodListings, "Location")},
				{Name: "Total_Claims", Agg: AggCountRows},
			},
			OrderBy: []Order{{Field: "Total_Claims", Desc: true}, {Field: "City"}},
		},
	},
	{
		Name:           "listings_by_food_type",
		Title:          "Listings by Food Type",
		Description:    "Listings per food type.",
		Chart:          Chart{Kind: ChartBar, X: "Food_Type", Y: "Total_Listings", Color: "#006400"},
		FoodTypeOption: true,
		base: &Plan{
			From:    schema.FoodListings,
			GroupBy: []string{"Food_Type"},
			Fields: []Field{
				{Name: "Food_Type", Column: Col(schema.FoodListings, "Food_Type")},
				{Name: "Total_Listings", Agg: AggCountRows},
			},
			OrderBy: []Order{{Field: "Total_Listings", Desc: true}, {Field: "Food_Type"}},
		},
	},
	{
		Name:        "quantity_vs_expiry",
		Title:       "Quantity vs Expiry Date",
		Description: "Listed quantity against expiry date.",
		Chart:       Chart{Kind: ChartScatter, X: "Expiry_Date", Y: "Quantity"},
		base: &Plan{
			From: schema.FoodListings,
			Filters: []Filter{
				{Column: Col(schema.FoodListings, "Expiry_Date"), Op: OpNotNull},
			},
			Fields: []Field{
				{Name: "Food_ID", Column: Col(schema.FoodListings, "Food_ID"), Hidden: true},
				{Name: "Expiry_Date", Column: Col(schema.FoodListings, "Expiry_Date"), Transform: TransformDate},
				{Name: "Quantity", Column: Col(schema.FoodListings, "Quantity")},
			},
			OrderBy: []Order{{Field: "Expiry_Date"}, {Field: "Food_ID"}},
		},
	},
	{
		Name:        "provider_contribution",
		Title:       "Top Providers by Listings",
		Description: "Providers contributing the most listings.",
		Chart:       Chart{Kind: ChartHBar, X: "Listings", Y: "Name"},
		base: &Plan{
			From:    schema.Providers,
			Joins:   []Join{listingsOfProvider},
			GroupBy: providerGroup,
			Fields:  perProvider(Field{Name: "Listings", Agg: AggCount, Column: Col(schema.FoodListings, "Food_ID")}),
			OrderBy: rankProviders("Listings"),
			Limit:   10,
		},
	},
	{
		Name:        "claims_trend",
		Title:       "Claims Trend Over Time",
		Description: "Claims per day.",
		Chart:       Chart{Kind: ChartArea, X: "Date", Y: "Total_Claims", Color: "#FF69B4"},
		base: &Plan{
			From: schema.Claims,
			Filters: []Filter{
				{Column: Col(schema.Claims, "Timestamp"), Op: OpNotNull},
			},
			GroupBy: []string{"Date"},
			Fields: []Field{
				{Name: "Date", Column: Col(schema.Claims, "Timestamp"), Transform: TransformDate},
				{Name: "Total_Claims", Agg: AggCountRows},
			},
			OrderBy: []Order{{Field: "Date"}},
		},
	},
}

// Views returns the chart view catalog.
func Views() []View {
	out := make([]View, len(views))
	copy(out, views)
	return out
}

// ViewByName looks up a view. Unknown names fail with ErrUnknownView.
func ViewByName(name string) (View, error) {
	for _, v := range views {
		if v.Name == name {
			return v, nil
		}
	}
	return View{}, fmt.Errorf("%w: %s", ErrUnknownView, name)
}
