package handlers

import (
	"net/http"
	"testing"

	"github.com/familyledger/backend/internal/models"
)

func TestShoppingListFlow(t *testing.T) {
	env := setupTestEnv(t)

	requester, requesterToken := createTestUser(t, env.db, "requester@example.com", "supersecret", "Requester")
	buyer, buyerToken := createTestUser(t, env.db, "buyer@example.com", "supersecret", "Buyer")
	createTestFamily(t, env.db, "Shopping Household", requester, buyer)

	var itemID string

	t.Run("create defaults quantity", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/shopping/", map[string]any{
			"name": "Milk",
		}, authHeaders(requesterToken))
		assertStatus(t, resp, http.StatusCreated)

		data := dataMap(t, decodeJSONMap(t, resp))
		if data["quantity"] != "1" {
			t.Fatalf("expected default quantity, got %v", data["quantity"])
		}
		itemID, _ = data["id"].(string)
		if itemID == "" {
			t.Fatal("expected an item id")
		}
	})

	t.Run("purchase derives one attributed expense", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/shopping/"+itemID+"/purchase", map[string]any{
			"price": 3.5,
		}, authHeaders(buyerToken))
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, decodeJSONMap(t, resp))
		if data["isPurchased"] != true {
			t.Fatal("expected the item to be purchased")
		}
		if data["boughtBy"] != buyer.ID.String() {
			t.Fatalf("expected buyer %s, got %v", buyer.ID, data["boughtBy"])
		}

		var derived models.BudgetItem
		if err := env.db.First(&derived, "category = ?", ShoppingCategory).Error; err != nil {
			t.Fatalf("expected a derived expense: %v", err)
		}
		if derived.CreatedBy != buyer.ID {
			t.Error("the buyer authors the derived expense")
		}
		if derived.AttributedTo == nil || *derived.AttributedTo != requester.ID {
			t.Error("the requester bears the derived expense")
		}
		if derived.Amount != 3.5 || derived.Note != "Milk" {
			t.Errorf("unexpected derived row: %+v", derived)
		}
	})

	t.Run("re-marking is idempotent", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/shopping/"+itemID+"/purchase", map[string]any{
			"price": 99,
		}, authHeaders(buyerToken))
		assertStatus(t, resp, http.StatusOK)

		var count int64
		env.db.Model(&models.BudgetItem{}).Where("category = ?", ShoppingCategory).Count(&count)
		if count != 1 {
			t.Fatalf("expected exactly one derived expense, got %d", count)
		}

		var item models.ShoppingItem
		if err := env.db.First(&item, "id = ?", itemID).Error; err != nil {
			t.Fatalf("failed reloading item: %v", err)
		}
		if item.Price != 3.5 {
			t.Fatalf("re-mark must not change the recorded price, got %.2f", item.Price)
		}
	})

	t.Run("zero price purchase derives nothing", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/shopping/", map[string]any{
			"name": "Coupons",
		}, authHeaders(requesterToken))
		assertStatus(t, resp, http.StatusCreated)
		freeID, _ := dataMap(t, decodeJSONMap(t, resp))["id"].(string)

		resp = performJSONRequest(t, env.app, http.MethodPut, "/api/shopping/"+freeID+"/purchase", map[string]any{
			"price": 0,
		}, authHeaders(buyerToken))
		assertStatus(t, resp, http.StatusOK)

		var count int64
		env.db.Model(&models.BudgetItem{}).Where("category = ?", ShoppingCategory).Count(&count)
		if count != 1 {
			t.Fatalf("free purchase must not add an expense, got %d", count)
		}
	})

	t.Run("only the requester deletes their entry", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodDelete, "/api/shopping/"+itemID, nil, authHeaders(buyerToken))
		assertStatus(t, resp, http.StatusForbidden)

		resp = performJSONRequest(t, env.app, http.MethodDelete, "/api/shopping/"+itemID, nil, authHeaders(requesterToken))
		assertStatus(t, resp, http.StatusOK)
	})

	t.Run("clear purchased reports the count", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodDelete, "/api/shopping/purchased", nil, authHeaders(requesterToken))
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, decodeJSONMap(t, resp))
		if data["deletedCount"] != float64(1) {
			t.Fatalf("expected 1 cleared item, got %v", data["deletedCount"])
		}

		var remaining int64
		env.db.Model(&models.ShoppingItem{}).Where("is_purchased = ?", true).Count(&remaining)
		if remaining != 0 {
			t.Fatal("expected no purchased items left")
		}
	})
}
