package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/garageflow/internal/auth"
	"github.com/smallbiznis/garageflow/internal/authorization"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
	bookingrepository "github.com/smallbiznis/garageflow/internal/booking/repository"
	bookingservice "github.com/smallbiznis/garageflow/internal/booking/service"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	garagedomain "github.com/smallbiznis/garageflow/internal/garage/domain"
	garagerepository "github.com/smallbiznis/garageflow/internal/garage/repository"
	garageservice "github.com/smallbiznis/garageflow/internal/garage/service"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	inventoryrepository "github.com/smallbiznis/garageflow/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/garageflow/internal/inventory/service"
	invoicedomain "github.com/smallbiznis/garageflow/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/garageflow/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/garageflow/internal/invoice/service"
	jobsheetdomain "github.com/smallbiznis/garageflow/internal/jobsheet/domain"
	jobsheetrepository "github.com/smallbiznis/garageflow/internal/jobsheet/repository"
	jobsheetservice "github.com/smallbiznis/garageflow/internal/jobsheet/service"
	"github.com/smallbiznis/garageflow/internal/observability"
	"github.com/smallbiznis/garageflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testGarageID = snowflake.ID(4242)

type fakeAuthorizer struct {
	denied map[string]bool
	calls  []string
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, principal auth.Principal, object string, action string) error {
	_ = ctx
	_ = principal
	f.calls = append(f.calls, action)
	if f.denied[action] {
		return authorization.ErrForbidden
	}
	return nil
}

type testServer struct {
	srv      *Server
	tokens   *auth.TokenService
	authz    *fakeAuthorizer
	garage   garagedomain.Garage
	bookings bookingdomain.Service
	sheets   jobsheetdomain.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t,
		&garagedomain.Garage{},
		&bookingdomain.Booking{},
		&bookingdomain.BookingService{},
		&inventorydomain.Item{},
		&inventorydomain.Movement{},
		&jobsheetdomain.JobSheet{},
		&jobsheetdomain.DiagnosedService{},
		&jobsheetdomain.TimeLog{},
		&jobsheetdomain.ChecklistItem{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
	)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Now().UTC())

	tokens, err := auth.NewTokenService(config.Config{AuthJWTSecret: "server-test-secret"}, clk)
	require.NoError(t, err)

	garage := garagedomain.Garage{ID: testGarageID, Name: "Main Workshop", Slug: "main", Bays: 4}
	require.NoError(t, db.Create(&garage).Error)

	bookings := bookingservice.New(bookingservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: bookingrepository.Provide(),
	})
	inventory := inventoryservice.New(inventoryservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     inventoryrepository.Provide(),
		Workshop: config.NewStaticWorkshopConfigHolder(config.DefaultWorkshopConfig()),
	})
	sheets := jobsheetservice.New(jobsheetservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: jobsheetrepository.Provide(),
		BookingSvc:   bookings,
		InventorySvc: inventory,
		InvoiceSvc: invoiceservice.NewService(invoiceservice.ServiceParam{
			DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: invoicerepository.Provide(),
		}),
	})

	authz := &fakeAuthorizer{denied: map[string]bool{}}
	srv := &Server{
		engine:   NewEngine(observability.Config{}, nil),
		cfg:      config.Config{Environment: "test"},
		tokens:   tokens,
		authzSvc: authz,
		garageSvc: garageservice.New(garageservice.Params{
			DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: garagerepository.Provide(),
		}),
		bookingSvc:   bookings,
		inventorySvc: inventory,
		jobSheetSvc:  sheets,
	}
	srv.registerAPIRoutes()

	return &testServer{srv: srv, tokens: tokens, authz: authz, garage: garage, bookings: bookings, sheets: sheets}
}

func (ts *testServer) token(t *testing.T, role auth.Role) string {
	t.Helper()
	token, err := ts.tokens.Issue(auth.Principal{Subject: "user-1", GarageID: testGarageID, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			payload.WriteString(v)
		default:
			require.NoError(t, json.NewEncoder(&payload).Encode(v))
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(resp, req)
	return resp
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error errorPayload    `json:"error"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var out envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func bookingPayload() map[string]any {
	return map[string]any{
		"serviceId":       "oil-change",
		"serviceName":     "Oil Change",
		"servicePrice":    "45.00",
		"serviceDuration": 30,
		"customer":        map[string]any{"name": "Tom Reyes", "phone": "07700 900456"},
		"car":             map[string]any{"make": "Ford", "model": "Focus", "year": 2016, "license": "ab16 cde"},
		"date":            "2026-03-02",
		"startTime":       "09:00",
		"endTime":         "10:00",
		"bay":             "Bay 1",
	}
}

func bookingsPath(garageID snowflake.ID) string {
	return "/api/garages/" + garageID.String() + "/bookings"
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/inventory", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", decode(t, resp).Error.Type)

	resp = ts.do(t, http.MethodGet, "/api/inventory", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAccessTokenCookieAuthenticates(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/inventory", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: ts.token(t, auth.RoleManager)})
	resp := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestGaragePathMustMatchToken(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, auth.RoleManager)

	resp := ts.do(t, http.MethodGet, bookingsPath(testGarageID+1), token, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.do(t, http.MethodGet, "/api/garages/"+testGarageID.String(), token, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var garage garagedomain.Garage
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &garage))
	assert.Equal(t, "Main Workshop", garage.Name)
}

func TestCreateBookingReportsEachMissingField(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, auth.RoleManager)

	for _, field := range []string{"serviceId", "serviceName", "customer", "car", "date", "startTime", "endTime", "bay"} {
		t.Run(field, func(t *testing.T) {
			payload := bookingPayload()
			delete(payload, field)

			resp := ts.do(t, http.MethodPost, bookingsPath(testGarageID), token, payload)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

			body := decode(t, resp)
			assert.Equal(t, "validation_error", body.Error.Type)
			require.Len(t, body.Error.Errors, 1)
			assert.Equal(t, field, body.Error.Errors[0].Field)
		})
	}
}

func TestCreateBookingRejectsCustomerWithoutContact(t *testing.T) {
	ts := newTestServer(t)
	payload := bookingPayload()
	payload["customer"] = map[string]any{"name": "Tom Reyes"}

	resp := ts.do(t, http.MethodPost, bookingsPath(testGarageID), ts.token(t, auth.RoleManager), payload)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	body := decode(t, resp)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "customer", body.Error.Errors[0].Field)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, auth.RoleManager)

	resp := ts.do(t, http.MethodPost, bookingsPath(testGarageID), token, bookingPayload())
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created bookingdomain.Booking
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &created))
	assert.Equal(t, bookingdomain.StatusPending, created.Status)
	assert.Equal(t, "AB16 CDE", created.Vehicle.License)
	require.Len(t, created.Services, 1)

	path := bookingsPath(testGarageID) + "/" + created.ID.String()
	resp = ts.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.do(t, http.MethodPost, path+"/status", token, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())

	resp = ts.do(t, http.MethodPost, path+"/status", token, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var confirmed bookingdomain.Booking
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &confirmed))
	assert.Equal(t, bookingdomain.StatusConfirmed, confirmed.Status)

	resp = ts.do(t, http.MethodGet, bookingsPath(testGarageID)+"/"+snowflake.ID(1).String(), token, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAuthorizerDenialIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	ts.authz.denied[authorization.ActionBookingCreate] = true

	resp := ts.do(t, http.MethodPost, bookingsPath(testGarageID), ts.token(t, auth.RoleTechnician), bookingPayload())
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Contains(t, ts.authz.calls, authorization.ActionBookingCreate)
}

func TestStockMovementAdjustsItemAndLedgerVerifies(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, auth.RoleManager)

	resp := ts.do(t, http.MethodPost, "/api/inventory", token, map[string]any{
		"name":         "Oil Filter",
		"sku":          "oil-filter",
		"quantity":     3,
		"reorderLevel": 2,
		"price":        "8.50",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var item inventorydomain.Item
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &item))

	resp = ts.do(t, http.MethodPost, "/api/inventory", token, map[string]any{"name": "Oil Filter", "sku": "oil-filter"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = ts.do(t, http.MethodPost, "/api/stock-movement", token, map[string]any{
		"itemId":   item.ID.String(),
		"type":     "decrease",
		"quantity": 5,
		"reason":   "used on walk-in job",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var movement struct {
		Item      inventorydomain.Item `json:"item"`
		Shortfall int64                `json:"shortfall"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &movement))
	assert.Equal(t, int64(0), movement.Item.Quantity)
	assert.Equal(t, inventorydomain.StatusOut, movement.Item.Status)
	assert.Equal(t, int64(2), movement.Shortfall)

	resp = ts.do(t, http.MethodGet, "/api/inventory/"+item.ID.String()+"/verify", token, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var report inventorydomain.LedgerReport
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &report))
	assert.True(t, report.Consistent)
	assert.Equal(t, 2, report.Movements)
}

func TestStockMovementValidatesBody(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, auth.RoleManager)

	resp := ts.do(t, http.MethodPost, "/api/stock-movement", token, map[string]any{"type": "increase", "quantity": 1, "reason": "delivery"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "itemId", decode(t, resp).Error.Errors[0].Field)

	resp = ts.do(t, http.MethodPost, "/api/stock-movement", token, `{"itemId":`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "request", decode(t, resp).Error.Errors[0].Field)
}

func (ts *testServer) jobSheet(t *testing.T, garageID snowflake.ID) jobsheetdomain.JobSheet {
	t.Helper()
	ctx := garagecontext.WithGarageID(context.Background(), garageID)
	booking, err := ts.bookings.Create(ctx, bookingdomain.CreateBookingRequest{
		ServiceID:    "inspection",
		ServiceName:  "Inspection",
		ServicePrice: decimal.NewFromInt(30),
		Customer:     bookingdomain.Customer{Name: "Tom Reyes", Phone: "07700 900456"},
		Car:          bookingdomain.Vehicle{Make: "Ford", Model: "Focus", Year: 2016, License: "AB16 CDE"},
		Date:         "2026-03-02",
		StartTime:    "09:00",
		EndTime:      "10:00",
		Bay:          "Bay 1",
	})
	require.NoError(t, err)
	sheet, err := ts.sheets.Create(ctx, jobsheetdomain.CreateJobSheetRequest{BookingID: booking.ID.String(), TechnicianID: "tech-1"})
	require.NoError(t, err)
	return sheet
}

func TestStockMovementReferencesMustBelongToGarage(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, auth.RoleManager)

	resp := ts.do(t, http.MethodPost, "/api/inventory", token, map[string]any{
		"name": "Brake cleaner", "sku": "brake-cleaner", "quantity": 6, "reorderLevel": 1,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var item inventorydomain.Item
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &item))

	own := ts.jobSheet(t, testGarageID)
	other := ts.jobSheet(t, snowflake.ID(9001))
	unrelated := ts.jobSheet(t, testGarageID)

	movement := func(refs map[string]any) map[string]any {
		body := map[string]any{"itemId": item.ID.String(), "type": "decrease", "quantity": 1, "reason": "used on job"}
		for k, v := range refs {
			body[k] = v
		}
		return body
	}

	rejected := []struct {
		refs  map[string]any
		field string
	}{
		{map[string]any{"jobSheetId": other.ID.String()}, "jobSheetId"},
		{map[string]any{"bookingId": other.BookingID.String()}, "bookingId"},
		{map[string]any{"jobSheetId": "123456789"}, "jobSheetId"},
		{map[string]any{"bookingId": "123456789"}, "bookingId"},
		{map[string]any{"jobSheetId": own.ID.String(), "bookingId": unrelated.BookingID.String()}, "bookingId"},
	}
	for _, tc := range rejected {
		resp := ts.do(t, http.MethodPost, "/api/stock-movement", token, movement(tc.refs))
		require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
		assert.Equal(t, tc.field, decode(t, resp).Error.Errors[0].Field)
	}

	resp = ts.do(t, http.MethodGet, "/api/inventory/"+item.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &item))
	assert.Equal(t, int64(6), item.Quantity)

	resp = ts.do(t, http.MethodPost, "/api/stock-movement", token, movement(map[string]any{
		"jobSheetId": own.ID.String(),
		"bookingId":  own.BookingID.String(),
	}))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var created inventorydomain.Movement
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &created))
	assert.Equal(t, inventorydomain.ReferenceJobSheet, created.ReferenceType)
}

func TestInvalidPathIDIsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/api/inventory/not-an-id", ts.token(t, auth.RoleManager), nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "id", decode(t, resp).Error.Errors[0].Field)
}
