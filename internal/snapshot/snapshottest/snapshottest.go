// Package snapshottest provides small datasets for tests.
package snapshottest

import (
	"testing"
	"time"

	"github.com/tordrt/foodstats/internal/snapshot"
)

// Today is the processing date the Sample answers are worked out for.
var Today = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

// Sample returns a dataset with the awkward cases: two providers sharing a
// name, a provider without listings, a listing without claims, a listing
// without an expiry date and a claim pointing at no listing.
func Sample(tb testing.TB) *snapshot.Snapshot {
	tb.Helper()
	snap, err := snapshot.NewBuilder("sample").
		Provider(1, "Gray Inc", "Restaurant", "Chennai", "").
		Provider(2, "Apex", "Grocery Store", "Mumbai", "").
		Provider(3, "Gray Inc", "Supermarket", "Chennai", "").
		Provider(4, "Zed Foods", "Restaurant", "Delhi", "").
		Receiver(1, "R1", "Chennai").
		Receiver(2, "R2", "Mumbai").
		Receiver(3, "R3", "Delhi").
		Listing(10, 1, 10, "2025-01-01", "Vegan", "Chennai").
		Listing(11, 1, 20, "2025-03-01", "Vegetarian", "Chennai").
		Listing(12, 2, 5, "2025-01-10", "Vegan", "Mumbai").
		Listing(13, 3, 7, "", "Non-Vegetarian", "Chennai").
		Claim(100, 10, 1, "Completed", "2025-01-01 10:00:00").
		Claim(101, 10, 2, "Pending", "2025-01-02 11:00:00").
		Claim(102, 11, 1, "Completed", "2025-01-02 12:00:00").
		Claim(103, 12, 3, "Cancelled", "2025-01-03 09:00:00").
		Claim(104, 99, 1, "Completed", "2025-01-03 10:00:00").
		Build()
	if err != nil {
		tb.Fatalf("failed to build sample snapshot: %v", err)
	}
	return snap
}

// Chennai returns a dataset where every provider and listing is in
// Chennai and every claim is completed.
func Chennai(tb testing.TB) *snapshot.Snapshot {
	tb.Helper()
	snap, err := snapshot.NewBuilder("chennai").
		Provider(1, "Annapurna", "Restaurant", "Chennai", "").
		Provider(2, "Bay Bakery", "Grocery Store", "Chennai", "").
		Receiver(1, "Hope", "Chennai").
		Listing(1, 1, 10, "2025-01-05", "Vegan", "Chennai").
		Listing(2, 2, 4, "2025-03-05", "Vegetarian", "Chennai").
		Claim(1, 1, 1, "Completed", "2025-01-02 08:00:00").
		Claim(2, 2, 1, "Completed", "2025-01-03 08:00:00").
		Build()
	if err != nil {
		tb.Fatalf("failed to build chennai snapshot: %v", err)
	}
	return snap
}

// Unlisted returns two Chennai providers where only P1 has a listing, with
// one completed claim on it.
func Unlisted(tb testing.TB) *snapshot.Snapshot {
	tb.Helper()
	snap, err := snapshot.NewBuilder("unlisted").
		Provider(1, "P1", "Restaurant", "Chennai", "").
		Provider(2, "P2", "Grocery Store", "Chennai", "").
		Receiver(1, "R1", "Chennai").
		Listing(1, 1, 10, "2025-03-01", "Vegan", "Chennai").
		Claim(1, 1, 1, "Completed", "2025-01-02 08:00:00").
		Build()
	if err != nil {
		tb.Fatalf("failed to build unlisted snapshot: %v", err)
	}
	return snap
}
