package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// upsertFlags mirrors the editable fields of a record.
type upsertFlags struct {
	id           string
	name         string
	phone        string
	products     []string
	value        string
	priority     string
	lastContact  string
	demoDate     string
	deliveryDate string
	notes        string
	tags         []string
	status       string
	paymentPlan  string
	eventID      string
	calendarID   string
}

func newUpsertCmd() *cobra.Command {
	var uf upsertFlags

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create a record, or edit one with --id",
		Long: `Create a record, or edit an existing one when --id is given.

When editing, only the flags you pass change; every other field keeps its
stored value. A new record lands at the end of --status (default: the first
bucket). Changing --status on an edit moves the record to the end of that
bucket.

Examples:
  pipeboard upsert --name "Ana Pérez" --phone 5551234 --product Olla --tag urgente
  pipeboard upsert --id 0190f1c2-... --status demo --demo-date 2026-11-02`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				form, err := buildForm(a, cmd.Flags(), uf)
				if err != nil {
					return err
				}
				snap, rec, err := a.engine.Upsert(form)
				if err != nil {
					return boardError(requiredHint(err, uf.id == ""))
				}
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), rec)
				}
				verb := "Updated"
				if snap.Change != nil && snap.Change.Op == types.OpCreate {
					verb = "Created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s) in %s\n", verb, rec.Name, rec.ID, rec.Status)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&uf.id, "id", "", "id of the record to edit; empty creates a record")
	f.StringVar(&uf.name, "name", "", "contact name")
	f.StringVar(&uf.phone, "phone", "", "contact phone")
	f.StringSliceVar(&uf.products, "product", nil, "product line (repeatable)")
	f.StringVar(&uf.value, "value", "", "deal value as displayed")
	f.StringVar(&uf.priority, "priority", "", "HIGH, MEDIUM or LOW (default MEDIUM)")
	f.StringVar(&uf.lastContact, "last-contact", "", "last contact date (YYYY-MM-DD)")
	f.StringVar(&uf.demoDate, "demo-date", "", "demo date (YYYY-MM-DD)")
	f.StringVar(&uf.deliveryDate, "delivery-date", "", "delivery date (YYYY-MM-DD)")
	f.StringVar(&uf.notes, "notes", "", "free-form notes")
	f.StringSliceVar(&uf.tags, "tag", nil, "tag id (repeatable)")
	f.StringVar(&uf.status, "status", "", "target bucket id")
	f.StringVar(&uf.paymentPlan, "payment-plan", "", "payment plan")
	f.StringVar(&uf.eventID, "event-id", "", "calendar event id")
	f.StringVar(&uf.calendarID, "calendar-id", "", "calendar id")
	return cmd
}

// buildForm starts from the stored record when editing, or from an empty
// form in the first bucket when creating, and applies the flags that were
// set on the command line.
func buildForm(a *app, fs *pflag.FlagSet, uf upsertFlags) (types.FormData, error) {
	var form types.FormData
	if uf.id != "" {
		_, rec, err := a.engine.FindRecord(uf.id)
		if err != nil {
			return form, boardError(err)
		}
		form = types.FormFromRecord(rec)
	} else if defs := a.engine.Buckets(); len(defs) > 0 {
		form.Status = defs[0].ID
	}

	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("name", &form.Name, uf.name)
	set("phone", &form.Phone, uf.phone)
	set("value", &form.Value, uf.value)
	set("last-contact", &form.LastContact, uf.lastContact)
	set("demo-date", &form.DemoDate, uf.demoDate)
	set("delivery-date", &form.DeliveryDate, uf.deliveryDate)
	set("notes", &form.Notes, uf.notes)
	set("status", &form.Status, uf.status)
	set("payment-plan", &form.PaymentPlan, uf.paymentPlan)
	if fs.Changed("priority") {
		form.Priority = types.Priority(uf.priority)
	}
	if fs.Changed("product") {
		form.Products = uf.products
	}
	if fs.Changed("tag") {
		form.Tags = uf.tags
	}
	if fs.Changed("event-id") {
		form.EventID = &uf.eventID
	}
	if fs.Changed("calendar-id") {
		form.CalendarID = &uf.calendarID
	}
	return form, nil
}

// requiredHint names the flags a new record needs when the form failed on a
// required contact field.
func requiredHint(err error, creating bool) error {
	var verr *types.ValidationError
	if !creating || !errors.As(err, &verr) {
		return err
	}
	if verr.Has("name") || verr.Has("phone") {
		return fmt.Errorf("%w (new records need --name and --phone)", err)
	}
	return err
}
