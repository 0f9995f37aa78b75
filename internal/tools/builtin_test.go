package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestSupplierSearchNoMatchesYieldsEmptyList(t *testing.T) {
	out, err := supplierSearch(context.Background(), "unobtainium widgets")
	if err != nil {
		t.Fatalf("supplierSearch failed: %v", err)
	}
	if string(out) != `[]` {
		t.Fatalf("no-match result = %s, want []", out)
	}
}

func TestSupplierSearchMatchesByMaterial(t *testing.T) {
	out, err := supplierSearch(context.Background(), "recycled paper near mumbai")
	if err != nil {
		t.Fatalf("supplierSearch failed: %v", err)
	}
	var hits []supplierHit
	if err := json.Unmarshal(out, &hits); err != nil {
		t.Fatalf("result is not a supplier list: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one supplier hit")
	}
	if hits[0].Name != "EverGreen Paper Co" {
		t.Fatalf("first hit = %+v", hits[0])
	}
}
