package snapshot

import (
	"github.com/tordrt/foodstats/internal/schema"
)

// Builder assembles a snapshot row by row. Empty strings are stored as
// NULL. The first error sticks and is returned by Build.
type Builder struct {
	source string
	tables map[string]*Table
	err    error
}

// NewBuilder starts an empty snapshot.
func NewBuilder(source string) *Builder {
	b := &Builder{source: source, tables: make(map[string]*Table)}
	for _, name := range schema.Dataset.TableNames() {
		t, err := NewTable(name)
		if err != nil {
			b.err = err
			return b
		}
		b.tables[name] = t
	}
	return b
}

func (b *Builder) add(table string, values ...any) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.tables[table].Append(values...)
	return b
}

// Provider adds a provider.
func (b *Builder) Provider(id int64, name, typ, city, contact string) *Builder {
	return b.add(schema.Providers, id, name, typ, city, contact)
}

// Receiver adds a receiver.
func (b *Builder) Receiver(id int64, name, city string) *Builder {
	return b.add(schema.Receivers, id, name, nil, city, nil)
}

// Listing adds a food listing. expiry is YYYY-MM-DD or empty.
func (b *Builder) Listing(id, providerID, quantity int64, expiry, foodType, location string) *Builder {
	return b.add(schema.FoodListings, id, nil, quantity, expiry, providerID, nil, location, foodType, nil)
}

// Claim adds a claim. timestamp is YYYY-MM-DD HH:MM:SS or empty.
func (b *Builder) Claim(id, foodID, receiverID int64, status, timestamp string) *Builder {
	return b.add(schema.Claims, id, foodID, receiverID, status, timestamp)
}

// Build returns the snapshot or the first error encountered.
func (b *Builder) Build() (*Snapshot, error) {
	if b.err != nil {
		return nil, b.err
	}
	tables := make([]*Table, 0, len(b.tables))
	for _, name := range schema.Dataset.TableNames() {
		tables = append(tables, b.tables[name])
	}
	return New(b.source, tables...)
}
