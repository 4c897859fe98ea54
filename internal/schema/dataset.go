package schema

// Table names of the food-donation dataset.
const (
	Providers    = "providers"
	Receivers    = "receivers"
	FoodListings = "food_listings"
	Claims       = "claims"
)

// Dataset is the food-donation schema shared by every backend.
var Dataset = &Schema{
	Tables: []Table{
		{
			Name:       Providers,
			Alias:      "p",
			PrimaryKey: "Provider_ID",
			Columns: []Column{
				{Name: "Provider_ID", Kind: KindInt},
				{Name: "Name", Kind: KindText, Nullable: true},
				{Name: "Type", Kind: KindText, Nullable: true},
				{Name: "City", Kind: KindText, Nullable: true},
				{Name: "Contact", Kind: KindText, Nullable: true},
			},
		},
		{
			Name:       Receivers,
			Alias:      "r",
			PrimaryKey: "Receiver_ID",
			Columns: []Column{
				{Name: "Receiver_ID", Kind: KindInt},
				{Name: "Name", Kind: KindText, Nullable: true},
				{Name: "Type", Kind: KindText, Nullable: true, Optional: true},
				{Name: "City", Kind: KindText, Nullable: true},
				{Name: "Contact", Kind: KindText, Nullable: true, Optional: true},
			},
		},
		{
			Name:       FoodListings,
			Alias:      "f",
			PrimaryKey: "Food_ID",
			Columns: []Column{
				{Name: "Food_ID", Kind: KindInt},
				{Name: "Food_Name", Kind: KindText, Nullable: true, Optional: true},
				{Name: "Quantity", Kind: KindInt},
				{Name: "Expiry_Date", Kind: KindDate, Nullable: true},
				{Name: "Provider_ID", Kind: KindInt},
				{Name: "Provider_Type", Kind: KindText, Nullable: true, Optional: true},
				{Name: "Location", Kind: KindText, Nullable: true},
				{Name: "Food_Type", Kind: KindText, Nullable: true},
				{Name: "Meal_Type", Kind: KindText, Nullable: true, Optional: true},
			},
			Relations: []Relation{
				{SourceColumn: "Provider_ID", TargetTable: Providers, TargetColumn: "Provider_ID", Cardinality: "N:1"},
			},
		},
		{
			Name:       Claims,
			Alias:      "c",
			PrimaryKey: "Claim_ID",
			Columns: []Column{
				{Name: "Claim_ID", Kind: KindInt},
				{Name: "Food_ID", Kind: KindInt},
				{Name: "Receiver_ID", Kind: KindInt},
				{Name: "Status", Kind: KindText, Nullable: true},
				{Name: "Timestamp", Kind: KindDateTime, Nullable: true},
			},
			Relations: []Relation{
				{SourceColumn: "Food_ID", TargetTable: FoodListings, TargetColumn: "Food_ID", Cardinality: "N:1"},
				{SourceColumn: "Receiver_ID", TargetTable: Receivers, TargetColumn: "Receiver_ID", Cardinality: "N:1"},
			},
		},
	},
}
