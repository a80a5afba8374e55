package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/swapshop/swapshop/internal/auth"
	"github.com/swapshop/swapshop/internal/db"
	"github.com/swapshop/swapshop/internal/directory"
	"github.com/swapshop/swapshop/internal/exchange"
	"github.com/swapshop/swapshop/internal/model"
	"github.com/swapshop/swapshop/internal/photos"
	"github.com/swapshop/swapshop/internal/store"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	tokens map[string]string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	ps, err := photos.NewStore(t.TempDir(), 5)
	require.NoError(t, err)

	router := NewRouter(Deps{
		Exchange:  exchange.NewService(database, ps, nil, nil, nil),
		Directory: directory.New(database, ".edu", nil),
		Sessions:  &auth.Sessions{DB: database, Secret: testJWTSecret},
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	users := map[string]string{
		"admin.mike@lsu.edu": model.RoleAdmin,
		"alice@lsu.edu":      model.RoleUser,
		"carlos@lsu.edu":     model.RoleUser,
		"sarah@lsu.edu":      model.RoleUser,
	}
	env := &testEnv{server: server, tokens: map[string]string{}}
	for email, role := range users {
		_, err := store.CreateUser(ctx, database, email, email, string(hash), role)
		require.NoError(t, err)
		env.tokens[email] = login(t, server.URL, email, "password123")
	}
	return env
}

func login(t *testing.T, base, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(base+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "login %s", email)

	var loginResp map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

// do sends a JSON request as user (empty user sends no token) and decodes the
// response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path, user string, body, out any) int {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[user])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type donateResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Item    *model.Item `json:"item"`
}

// donate posts a multipart donation as user.
func (e *testEnv) donate(t *testing.T, user string, fields map[string]string, photoCount int) (int, donateResponse) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for i := 0; i < photoCount; i++ {
		part, err := mw.CreateFormFile("photos", "photo.jpg")
		require.NoError(t, err)
		require.NoError(t, jpeg.Encode(part, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/donate", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.tokens[user])

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out donateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func textbookFields() map[string]string {
	return map[string]string{
		"title":       "Calculus Textbook",
		"description": "Stewart, barely used",
		"category":    "Books",
		"condition":   "Like New",
		"donor":       "alice@lsu.edu",
	}
}

// approvedItem donates as alice and approves as admin.
func (e *testEnv) approvedItem(t *testing.T) int64 {
	t.Helper()
	status, out := e.donate(t, "alice@lsu.edu", textbookFields(), 0)
	require.Equal(t, http.StatusOK, status)
	var res map[string]any
	e.do(t, http.MethodPost, "/api/admin/items/"+itoa(out.Item.ID)+"/approve", "admin.mike@lsu.edu", nil, &res)
	require.Equal(t, true, res["success"])
	return out.Item.ID
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	var res map[string]string
	status := env.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "alice@lsu.edu", "password": "wrong"}, &res)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, res["error"])

	status = env.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "alice@gmail.com", "password": "password123"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUnauthenticatedRequests(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/items", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/reserve", "", map[string]any{"id": 1}, nil))
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/auth/logout", "carlos@lsu.edu", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/items", "carlos@lsu.edu", nil, nil))
}

func TestDonateValidation(t *testing.T) {
	env := setupTestServer(t)

	for _, field := range []string{"title", "description", "category", "condition", "donor"} {
		fields := textbookFields()
		delete(fields, field)
		status, out := env.donate(t, "alice@lsu.edu", fields, 0)
		assert.Equal(t, http.StatusBadRequest, status, field)
		assert.False(t, out.Success)
		assert.Contains(t, out.Error, field)
	}

	var pending map[string][]model.Item
	env.do(t, http.MethodGet, "/api/admin/items", "admin.mike@lsu.edu", nil, &pending)
	assert.Empty(t, pending["pending"])
}

func TestDonateJSONBodyIsBounded(t *testing.T) {
	database := db.NewTestDB(t)
	ps, err := photos.NewStore(t.TempDir(), 5)
	require.NoError(t, err)
	h := &ItemsHandler{Exchange: exchange.NewService(database, ps, nil, nil, nil), MaxUploadBytes: 64}

	body, err := json.Marshal(map[string]string{
		"title":       "Calculus Textbook",
		"description": string(bytes.Repeat([]byte("x"), 256)),
		"category":    "Books",
		"condition":   "Good",
		"donor":       "alice@lsu.edu",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/donate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	claims := &auth.Claims{UserID: 1, Email: "alice@lsu.edu", Role: model.RoleUser}
	req = req.WithContext(context.WithValue(req.Context(), claimsKey, claims))
	rec := httptest.NewRecorder()
	h.Donate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	empty, err := h.Exchange.Empty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestDonateRejectsForeignDonor(t *testing.T) {
	env := setupTestServer(t)

	status, out := env.donate(t, "carlos@lsu.edu", textbookFields(), 0)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, out.Success)
}

func TestDonateCreatesPendingItem(t *testing.T) {
	env := setupTestServer(t)

	status, out := env.donate(t, "alice@lsu.edu", textbookFields(), 2)
	require.Equal(t, http.StatusOK, status)
	require.True(t, out.Success)
	assert.Equal(t, model.StatusPendingApproval, out.Item.Status)
	assert.False(t, out.Item.Approved)
	assert.Empty(t, out.Item.ReservedBy)
	assert.Equal(t, "alice@lsu.edu", out.Item.Donor)
	assert.Len(t, out.Item.Images, 2)

	var items []model.Item
	env.do(t, http.MethodGet, "/api/items", "carlos@lsu.edu", nil, &items)
	assert.Empty(t, items)

	// Pending items are hidden from others but visible to the donor.
	path := "/api/items/" + itoa(out.Item.ID)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, "carlos@lsu.edu", nil, nil))
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, "alice@lsu.edu", nil, nil))
}

func TestExchangeScenario(t *testing.T) {
	env := setupTestServer(t)
	id := env.approvedItem(t)

	var items []model.Item
	env.do(t, http.MethodGet, "/api/items?category=Books", "carlos@lsu.edu", nil, &items)
	require.Len(t, items, 1)

	var res map[string]any
	status := env.do(t, http.MethodPost, "/api/reserve", "carlos@lsu.edu",
		map[string]any{"id": id, "user": "carlos@lsu.edu"}, &res)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, res["success"])

	res = nil
	status = env.do(t, http.MethodPost, "/api/reserve", "sarah@lsu.edu",
		map[string]any{"id": itoa(id)}, &res)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, res["success"])

	var item model.Item
	env.do(t, http.MethodGet, "/api/items/"+itoa(id), "alice@lsu.edu", nil, &item)
	assert.Equal(t, "carlos@lsu.edu", item.ReservedBy)
	assert.Equal(t, model.StatusReserved, item.Status)

	// Non-donor status changes fail whatever the target.
	for _, target := range []string{model.StatusTaken, model.StatusAvailable} {
		res = nil
		env.do(t, http.MethodPost, "/api/update-status", "carlos@lsu.edu",
			map[string]any{"id": id, "status": target}, &res)
		assert.Equal(t, false, res["success"])
	}

	res = nil
	env.do(t, http.MethodPost, "/api/update-status", "alice@lsu.edu",
		map[string]any{"id": id, "status": model.StatusTaken, "user": "alice@lsu.edu"}, &res)
	assert.Equal(t, true, res["success"])

	var mine exchange.MyItems
	env.do(t, http.MethodGet, "/api/items/mine", "carlos@lsu.edu", nil, &mine)
	require.Len(t, mine.Claimed, 1)
	assert.Equal(t, model.StatusTaken, mine.Claimed[0].Status)
}

func TestReserveRejectsImpersonation(t *testing.T) {
	env := setupTestServer(t)
	id := env.approvedItem(t)

	var res map[string]any
	env.do(t, http.MethodPost, "/api/reserve", "sarah@lsu.edu",
		map[string]any{"id": id, "user": "carlos@lsu.edu"}, &res)
	assert.Equal(t, false, res["success"])

	status := env.do(t, http.MethodPost, "/api/reserve", "sarah@lsu.edu", map[string]any{"id": "abc"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestConcurrentReservesOneWinner(t *testing.T) {
	env := setupTestServer(t)
	id := env.approvedItem(t)

	users := []string{"carlos@lsu.edu", "sarah@lsu.edu", "admin.mike@lsu.edu"}
	results := make([]bool, len(users))
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			var res map[string]any
			env.do(t, http.MethodPost, "/api/reserve", u, map[string]any{"id": id}, &res)
			results[i] = res["success"] == true
		}(i, u)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/admin/items", "alice@lsu.edu", nil, nil))
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/admin/items/1/approve", "alice@lsu.edu", nil, nil))
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, "/api/admin/items/1", "alice@lsu.edu", nil, nil))
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/users", "alice@lsu.edu", nil, nil))
}

func TestApproveMissingItemIsNoop(t *testing.T) {
	env := setupTestServer(t)

	var res map[string]any
	status := env.do(t, http.MethodPost, "/api/admin/items/999/approve", "admin.mike@lsu.edu", nil, &res)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, res["success"])
}

func TestRejectNotifiesDonor(t *testing.T) {
	env := setupTestServer(t)

	fields := textbookFields()
	fields["title"] = "Mini Fridge"
	fields["donor"] = "sarah@lsu.edu"
	_, out := env.donate(t, "sarah@lsu.edu", fields, 1)
	require.True(t, out.Success)

	var res map[string]any
	env.do(t, http.MethodPost, "/api/admin/items/"+itoa(out.Item.ID)+"/reject", "admin.mike@lsu.edu",
		map[string]string{"reason": "no appliances"}, &res)
	assert.Equal(t, true, res["success"])

	var ns []model.Notification
	env.do(t, http.MethodGet, "/api/notifications", "sarah@lsu.edu", nil, &ns)
	require.Len(t, ns, 1)
	assert.Equal(t, "Mini Fridge", ns[0].ItemName)
	assert.Contains(t, ns[0].Message, "no appliances")

	var marked map[string]int64
	env.do(t, http.MethodPost, "/api/notifications/read", "sarah@lsu.edu", nil, &marked)
	assert.Equal(t, int64(1), marked["updated"])

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/items/"+itoa(out.Item.ID), "admin.mike@lsu.edu", nil, nil))
}

func TestDeleteAndExport(t *testing.T) {
	env := setupTestServer(t)
	id := env.approvedItem(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/admin/items/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.tokens["admin.mike@lsu.edu"])
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, XLSXContentType, resp.Header.Get("Content-Type"))

	var res map[string]any
	env.do(t, http.MethodDelete, "/api/admin/items/"+itoa(id), "admin.mike@lsu.edu", nil, &res)
	assert.Equal(t, true, res["success"])

	res = nil
	env.do(t, http.MethodDelete, "/api/admin/items/"+itoa(id), "admin.mike@lsu.edu", nil, &res)
	assert.Equal(t, false, res["success"])
}

func TestUsersEndpoints(t *testing.T) {
	env := setupTestServer(t)

	var created model.User
	status := env.do(t, http.MethodPost, "/api/users", "admin.mike@lsu.edu",
		map[string]string{"email": "james@lsu.edu", "name": "James", "password": "jamespass1"}, &created)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, model.RoleUser, created.Role)

	status = env.do(t, http.MethodPost, "/api/users", "admin.mike@lsu.edu",
		map[string]string{"email": "james@lsu.edu", "password": "jamespass1"}, nil)
	assert.Equal(t, http.StatusConflict, status)

	status = env.do(t, http.MethodPost, "/api/users", "admin.mike@lsu.edu",
		map[string]string{"email": "james@gmail.com", "password": "jamespass1"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var users []model.User
	env.do(t, http.MethodGet, "/api/users", "admin.mike@lsu.edu", nil, &users)
	assert.Len(t, users, 5)
}

func TestChangePassword(t *testing.T) {
	env := setupTestServer(t)

	status := env.do(t, http.MethodPut, "/api/auth/password", "alice@lsu.edu",
		map[string]string{"current_password": "wrong", "new_password": "newpassword1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = env.do(t, http.MethodPut, "/api/auth/password", "alice@lsu.edu",
		map[string]string{"current_password": "password123", "new_password": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = env.do(t, http.MethodPut, "/api/auth/password", "alice@lsu.edu",
		map[string]string{"current_password": "password123", "new_password": "newpassword1"}, nil)
	assert.Equal(t, http.StatusOK, status)

	login(t, env.server.URL, "alice@lsu.edu", "newpassword1")
}
