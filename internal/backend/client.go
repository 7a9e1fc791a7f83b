// Package backend is the HTTP client for the remote reservation backend. The
// backend owns every authoritative state; this client only moves JSON.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
)

const maxErrorBody = 64 << 10

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) SearchParkings(ctx context.Context, query string, near *entities.Position) ([]entities.Parking, error) {
	q := url.Values{}
	if query != "" {
		q.Set("search", query)
	}
	if near != nil {
		q.Set("lat", strconv.FormatFloat(near.Lat, 'f', 6, 64))
		q.Set("lng", strconv.FormatFloat(near.Lng, 'f', 6, 64))
	}
	path := "/parkings"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var parkings []entities.Parking
	if err := c.do(ctx, http.MethodGet, path, "", nil, &parkings); err != nil {
		return nil, apperrors.Wrap(err, "search parkings")
	}
	return parkings, nil
}

func (c *Client) GetParking(ctx context.Context, parkingID string) (*entities.Parking, error) {
	var p entities.Parking
	if err := c.do(ctx, http.MethodGet, "/parkings/"+url.PathEscape(parkingID), "", nil, &p); err != nil {
		return nil, apperrors.Wrap(err, "get parking")
	}
	return &p, nil
}

func (c *Client) GetLayout(ctx context.Context, parkingID string) (*entities.ParkingLayout, error) {
	var layout entities.ParkingLayout
	if err := c.do(ctx, http.MethodGet, "/parkings/"+url.PathEscape(parkingID)+"/spots", "", nil, &layout); err != nil {
		return nil, apperrors.Wrap(err, "get parking layout")
	}
	if layout.ParkingID == "" {
		layout.ParkingID = parkingID
	}
	return &layout, nil
}

func (c *Client) ListSpotReservations(ctx context.Context, parkingID string) ([]entities.SpotReservation, error) {
	var res []entities.SpotReservation
	if err := c.do(ctx, http.MethodGet, "/reservations/parking/"+url.PathEscape(parkingID), "", nil, &res); err != nil {
		return nil, apperrors.Wrap(err, "list spot reservations")
	}
	return res, nil
}

func (c *Client) CreateReservation(ctx context.Context, token string, draft entities.ReservationDraft) (*entities.Reservation, error) {
	var res entities.Reservation
	if err := c.do(ctx, http.MethodPost, "/reservations", token, draft, &res); err != nil {
		return nil, apperrors.Wrap(err, "create reservation")
	}
	return &res, nil
}

func (c *Client) GetReservation(ctx context.Context, token, reservationID string) (*entities.Reservation, error) {
	var res entities.Reservation
	if err := c.do(ctx, http.MethodGet, "/reservations/"+url.PathEscape(reservationID), token, nil, &res); err != nil {
		return nil, apperrors.Wrap(err, "get reservation")
	}
	return &res, nil
}

func (c *Client) UpdatePaymentStatus(ctx context.Context, token, reservationID, status string) error {
	body := map[string]string{"paymentStatus": status}
	if err := c.do(ctx, http.MethodPut, "/reservations/"+url.PathEscape(reservationID)+"/statusPayment", token, body, nil); err != nil {
		return apperrors.Wrap(err, "update payment status")
	}
	return nil
}

type paymentRequest struct {
	ReservationID   string  `json:"reservationId"`
	Amount          float64 `json:"amount,omitempty"`
	PaymentIntentID string  `json:"paymentIntentId,omitempty"`
}

func (c *Client) CreatePaymentIntent(ctx context.Context, token, reservationID string, amount float64) (*entities.PaymentIntent, error) {
	var pi entities.PaymentIntent
	req := paymentRequest{ReservationID: reservationID, Amount: amount}
	if err := c.do(ctx, http.MethodPost, "/payments/create-payment-intent", token, req, &pi); err != nil {
		return nil, apperrors.Wrap(err, "create payment intent")
	}
	return &pi, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, token, reservationID, paymentIntentID string) error {
	req := paymentRequest{ReservationID: reservationID, PaymentIntentID: paymentIntentID}
	if err := c.do(ctx, http.MethodPost, "/payments/confirm-payment", token, req, nil); err != nil {
		return apperrors.Wrap(err, "confirm payment")
	}
	return nil
}

func (c *Client) CreateFlouciPayment(ctx context.Context, token, reservationID string, amount float64) (*entities.FlouciPayment, error) {
	var fp entities.FlouciPayment
	req := paymentRequest{ReservationID: reservationID, Amount: amount}
	if err := c.do(ctx, http.MethodPost, "/payments/flouci/paiement", token, req, &fp); err != nil {
		return nil, apperrors.Wrap(err, "create flouci payment")
	}
	return &fp, nil
}

func (c *Client) VerifyPayment(ctx context.Context, token, paymentID string) (*entities.PaymentVerification, error) {
	var v entities.PaymentVerification
	if err := c.do(ctx, http.MethodGet, "/payments/verify/"+url.PathEscape(paymentID), token, nil, &v); err != nil {
		return nil, apperrors.Wrap(err, "verify payment")
	}
	if v.PaymentID == "" {
		v.PaymentID = paymentID
	}
	return &v, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "backend request failed", "method", method, "path", path, "error", err)
		return apperrors.Mark(err, apperrors.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrorMessage(resp.Body)
		c.logger.InfoContext(ctx, "backend rejected request",
			"method", method, "path", path, "status", resp.StatusCode, "message", msg)
		return apperrors.Backend(resp.StatusCode, msg)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Mark(apperrors.Wrap(err, "decode response"), apperrors.ErrBackend)
	}
	return nil
}

// readErrorMessage pulls "message" (or "error") out of a JSON error body and
// falls back to the raw text.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
