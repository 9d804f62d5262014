package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/itpbot/pkg/adapters/webhook"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/rates"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// maxBody bounds request bodies read by the handlers.
const maxBody = 1 << 20

func (s *Server) searchVehicles(w http.ResponseWriter, r *http.Request) {
	var maker string
	if err := runtime.BindQueryParameter("form", true, true, "maker", r.URL.Query(), &maker); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var year *int
	if err := runtime.BindQueryParameter("form", true, false, "year", r.URL.Query(), &year); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cars, err := s.Bot.Search(r.Context(), maker, year)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cars)
}

func (s *Server) getVehicle(w http.ResponseWriter, r *http.Request) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := s.Bot.Vehicle(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) seedVehicles(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var vehicles []domain.Vehicle
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &vehicles); err != nil {
			writeError(w, http.StatusBadRequest, "invalid vehicle list: "+err.Error())
			return
		}
	}
	if len(vehicles) == 0 {
		if s.fixture == nil {
			writeError(w, http.StatusBadRequest, "no vehicles to seed")
			return
		}
		if vehicles, err = s.fixture(); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	stored, err := s.Bot.Seed(r.Context(), vehicles)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

type calculateRequest struct {
	VehicleID  string `json:"vehicleId"`
	Region     string `json:"region"`
	IsResident bool   `json:"isResident"`
}

func (s *Server) calculateTransfer(w http.ResponseWriter, r *http.Request) {
	var body calculateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.Bot.Calculate(r.Context(), body.VehicleID, body.Region, body.IsResident)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listTransfers(w http.ResponseWriter, r *http.Request) {
	var vehicleID string
	if err := runtime.BindQueryParameter("form", true, false, "vehicleId", r.URL.Query(), &vehicleID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.Bot.Transfers(r.Context(), vehicleID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type rateResponse struct {
	Name               string `json:"name"`
	Rate               string `json:"rate"`
	BaseRate           string `json:"baseRate"`
	HighPowerSurcharge bool   `json:"highPowerSurcharge"`
	ResidentDiscount   bool   `json:"residentDiscount"`
}

func (s *Server) listRates(w http.ResponseWriter, r *http.Request) {
	regions := s.Bot.Rates()
	out := make([]rateResponse, 0, len(regions))
	for _, reg := range regions {
		out = append(out, rateResponse{
			Name:               reg.Name,
			Rate:               rates.FormatRate(reg.BaseRate),
			BaseRate:           reg.BaseRate.String(),
			HighPowerSurcharge: reg.HighPowerSurcharge,
			ResidentDiscount:   reg.ResidentDiscount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type inboundMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

type webhookResponse struct {
	Reply string      `json:"reply"`
	Step  domain.Step `json:"step"`
	Ended bool        `json:"ended,omitempty"`
}

// receiveMessage accepts {"from","text"} JSON or a form with From and Body.
func (s *Server) receiveMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if s.secret != "" {
		err := webhook.VerifySignature(s.secret,
			r.Header.Get(webhook.SignatureHeader), r.Header.Get(webhook.TimestampHeader), body, s.now())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	msg, err := parseInbound(r.Header.Get("Content-Type"), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg.From == "" {
		writeError(w, http.StatusBadRequest, "missing sender")
		return
	}

	if s.limiter != nil && !s.limiter.Allow(msg.From) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "too many messages")
		return
	}

	reply, err := s.Bot.HandleMessage(r.Context(), msg.From, msg.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Reply: reply.Text, Step: reply.Step, Ended: reply.Ended})
}

func parseInbound(contentType string, body []byte) (inboundMessage, error) {
	var msg inboundMessage
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return msg, errors.New("invalid form: " + err.Error())
		}
		msg.From = values.Get("From")
		msg.Text = values.Get("Body")
	} else if err := json.Unmarshal(body, &msg); err != nil {
		return msg, errors.New("invalid message: " + err.Error())
	}
	msg.From = strings.TrimSpace(msg.From)
	return msg, nil
}
