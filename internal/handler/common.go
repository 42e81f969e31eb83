package handler // handler defines http handlers

import (
    "encoding/json"
    "errors"
    "reflect"
    "strconv"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/cinema-reservation/internal/middleware"
    "github.com/iliyamo/cinema-reservation/internal/model"
    "github.com/iliyamo/cinema-reservation/internal/service"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
    v *validator.Validate
}

func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
        if name == "-" {
            return ""
        }
        return name
    })
    return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error {
    return cv.v.Struct(i)
}

// bindValid binds the request body into req and validates it.  The
// returned error is already a *service.ValidationError.
func bindValid(c echo.Context, req any) error {
    if err := c.Bind(req); err != nil {
        return &service.ValidationError{Field: "body", Message: "invalid request body"}
    }
    if err := c.Validate(req); err != nil {
        var verrs validator.ValidationErrors
        if errors.As(err, &verrs) && len(verrs) > 0 {
            fe := verrs[0]
            return &service.ValidationError{Field: jsonField(fe.Namespace()), Message: "failed " + fe.Tag() + " check"}
        }
        return &service.ValidationError{Field: "body", Message: err.Error()}
    }
    return nil
}

// jsonField drops the struct name: "createReq.seats[0].row" becomes
// "seats[0].row".
func jsonField(ns string) string {
    if _, rest, ok := strings.Cut(ns, "."); ok {
        return rest
    }
    return ns
}

// actor builds the service caller from the identity JWTAuth stored.
func actor(c echo.Context) (service.Actor, bool) {
    id, ok := middleware.UserID(c)
    if !ok {
        return service.Actor{}, false
    }
    return service.Actor{UserID: id, Role: middleware.Role(c)}, true
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, &service.ValidationError{Field: name, Message: "must be a positive integer"}
    }
    return id, nil
}

// queryID parses an optional numeric query parameter; absent means 0.
func queryID(c echo.Context, name string) (uint64, error) {
    raw := strings.TrimSpace(c.QueryParam(name))
    if raw == "" {
        return 0, nil
    }
    id, err := strconv.ParseUint(raw, 10, 64)
    if err != nil {
        return 0, &service.ValidationError{Field: name, Message: "must be a positive integer"}
    }
    return id, nil
}

// seatNumber accepts 7 or "7".
type seatNumber uint32

func (n *seatNumber) UnmarshalJSON(b []byte) error {
    var raw json.Number
    if err := json.Unmarshal(b, &raw); err != nil {
        var s string
        if err := json.Unmarshal(b, &s); err != nil {
            return err
        }
        raw = json.Number(strings.TrimSpace(s))
    }
    v, err := strconv.ParseUint(raw.String(), 10, 32)
    if err != nil {
        return err
    }
    *n = seatNumber(v)
    return nil
}

// seatReq is a seat in request bodies.
type seatReq struct {
    Row    string     `json:"row" validate:"required"`
    Number seatNumber `json:"number" validate:"required"`
}

func toSeats(in []seatReq) []model.Seat {
    out := make([]model.Seat, len(in))
    for i, s := range in {
        out[i] = model.Seat{Row: s.Row, Number: uint32(s.Number)}
    }
    return out
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
    Error    string   `json:"error"`
    Code     string   `json:"code"`
    Field    string   `json:"field,omitempty"`
    Seats    []string `json:"seats,omitempty"`
    Deadline string   `json:"deadline,omitempty"`
}
