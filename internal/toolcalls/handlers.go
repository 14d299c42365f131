package toolcalls

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"voice-campaigns/internal/contacts"
	"voice-campaigns/pkg/utils"
)

// Tools implements the built-in tool handlers against the contact store.
type Tools struct {
	contacts contacts.Store
	region   string
	validate *validator.Validate
	clock    func() time.Time

	// TransferNumber is returned by transfer_to_human when set.
	TransferNumber string
}

func NewTools(store contacts.Store, defaultRegion string) *Tools {
	return &Tools{
		contacts: store,
		region:   defaultRegion,
		validate: validator.New(),
		clock:    time.Now,
	}
}

// Registry returns the handler for every ToolName.
func (t *Tools) Registry() Registry {
	return Registry{
		ToolLookupContact:       t.lookupContact,
		ToolScheduleAppointment: t.scheduleAppointment,
		ToolUpdateContactInfo:   t.updateContactInfo,
		ToolTransferToHuman:     t.transferToHuman,
		ToolEndCall:             t.endCall,
	}
}

type phoneArgs struct {
	Phone string `json:"phone"`
}

func (t *Tools) lookupContact(ctx context.Context, cc CallContext, raw json.RawMessage) (any, error) {
	var args phoneArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	phone, err := t.phone(args.Phone, cc)
	if err != nil {
		return nil, err
	}

	c, err := t.contacts.FindByPhone(ctx, cc.OrganizationID, phone)
	if errors.Is(err, contacts.ErrNotFound) {
		return map[string]any{"success": true, "found": false}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success": true,
		"found":   true,
		"contact": map[string]any{
			"firstName": c.FirstName,
			"lastName":  c.LastName,
			"email":     c.Email,
			"company":   c.Company,
			"phone":     c.Phone,
		},
	}, nil
}

type appointmentArgs struct {
	Phone    string `json:"phone"`
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Notes    string `json:"notes"`
}

func (t *Tools) scheduleAppointment(ctx context.Context, cc CallContext, raw json.RawMessage) (any, error) {
	var args appointmentArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	phone, err := t.phone(args.Phone, cc)
	if err != nil {
		return nil, err
	}

	requested := strings.TrimSpace(args.DateTime)
	if requested == "" {
		requested = strings.TrimSpace(strings.TrimSpace(args.Date) + " " + strings.TrimSpace(args.Time))
	}
	if requested == "" {
		return nil, errors.New("dateTime is required")
	}

	a := newAppointment(cc, phone, requested, args.Notes, t.clock())
	if c, err := t.contacts.FindByPhone(ctx, cc.OrganizationID, phone); err == nil {
		a.ContactID = c.ID
	} else if !errors.Is(err, contacts.ErrNotFound) {
		return nil, err
	}
	if err := t.contacts.CreateAppointment(ctx, a); err != nil {
		return nil, err
	}

	out := map[string]any{"success": true, "appointmentId": a.ID}
	if a.ScheduledFor != nil {
		out["scheduledFor"] = a.ScheduledFor.Format(time.RFC3339)
	} else {
		out["requestedTime"] = a.RequestedTime
	}
	return out, nil
}

// newAppointment builds an appointment intent. Unparseable times are kept verbatim.
func newAppointment(cc CallContext, phone, requested, notes string, now time.Time) contacts.Appointment {
	a := contacts.Appointment{
		ID:             uuid.NewString(),
		OrganizationID: cc.OrganizationID,
		ContactPhone:   phone,
		CallID:         cc.CallID,
		Notes:          strings.TrimSpace(notes),
		CreatedAt:      now.UTC(),
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"} {
		if ts, err := time.Parse(layout, requested); err == nil {
			ts = ts.UTC()
			a.ScheduledFor = &ts
			return a
		}
	}
	a.RequestedTime = requested
	return a
}

type updateArgs struct {
	Phone     string  `json:"phone"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Company   *string `json:"company"`
	Notes     *string `json:"notes"`
}

func (t *Tools) updateContactInfo(ctx context.Context, cc CallContext, raw json.RawMessage) (any, error) {
	var args updateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := t.validate.Struct(args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	phone, err := t.phone(args.Phone, cc)
	if err != nil {
		return nil, err
	}
	u := contacts.Update{
		FirstName: args.FirstName,
		LastName:  args.LastName,
		Email:     args.Email,
		Company:   args.Company,
		Notes:     args.Notes,
	}
	if u.IsEmpty() {
		return nil, errors.New("no fields to update")
	}

	c, err := t.contacts.UpdateByPhone(ctx, cc.OrganizationID, phone, u, t.clock())
	if errors.Is(err, contacts.ErrNotFound) {
		return map[string]any{"success": false, "error": "contact not found"}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "contactId": c.ID}, nil
}

type transferArgs struct {
	Reason string `json:"reason"`
}

func (t *Tools) transferToHuman(ctx context.Context, cc CallContext, raw json.RawMessage) (any, error) {
	var args transferArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	out := map[string]any{"success": true, "action": "transfer"}
	if args.Reason != "" {
		out["reason"] = args.Reason
	}
	if t.TransferNumber != "" {
		out["destination"] = t.TransferNumber
	}
	return out, nil
}

func (t *Tools) endCall(ctx context.Context, cc CallContext, raw json.RawMessage) (any, error) {
	return map[string]any{"success": true, "action": "end_call"}, nil
}

func (t *Tools) phone(arg string, cc CallContext) (string, error) {
	p := strings.TrimSpace(arg)
	if p == "" {
		p = cc.CustomerPhone
	}
	p = utils.NormalizeE164(p, t.region)
	if p == "" {
		return "", errors.New("phone is required")
	}
	return p, nil
}

// decodeArgs accepts arguments as a JSON object or as a JSON string holding one.
func decodeArgs(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		raw = json.RawMessage(s)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
