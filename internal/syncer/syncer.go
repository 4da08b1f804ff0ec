// Package syncer writes one approved extraction into the CRM: company,
// contact, deal, associations and tasks, auditing every mutation.
package syncer

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/dealsync/internal/mapper"
	"github.com/sells-group/dealsync/internal/merge"
	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

// Config holds orchestrator settings.
type Config struct {
	ConnectionID           string
	PlaceholderEmailDomain string
	TaskDueDays            int
}

// Request is one approval event.
type Request struct {
	// ApprovalID groups the audit records of this sync. Generated when empty.
	ApprovalID    string
	Extraction    *model.Extraction
	Target        model.SyncTarget
	AllowedFields []string
	Transcript    string
}

// Orchestrator sequences the writes of one sync.
type Orchestrator struct {
	crm    hubspot.Client
	mapper *mapper.Mapper
	merger merge.Strategy
	ledger AuditLedger
	cfg    Config
	now    func() time.Time
}

// New creates an Orchestrator.
func New(crm hubspot.Client, m *mapper.Mapper, merger merge.Strategy, ledger AuditLedger, cfg Config) *Orchestrator {
	if cfg.PlaceholderEmailDomain == "" {
		cfg.PlaceholderEmailDomain = "placeholder.dealsync.invalid"
	}
	if cfg.TaskDueDays <= 0 {
		cfg.TaskDueDays = 1
	}
	return &Orchestrator{
		crm:    crm,
		mapper: m,
		merger: merger,
		ledger: ledger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// SyncExtraction runs company, contact, deal, associations and tasks for one
// approval. Only a deal failure fails the result; other step failures are
// visible in the audit trail.
func (o *Orchestrator) SyncExtraction(ctx context.Context, req Request) model.SyncResult {
	var res model.SyncResult
	ext := req.Extraction
	if ext == nil {
		return failed(res, model.ErrCodeInvalidTarget, "extraction is required")
	}
	if req.Target.IsNewDeal && req.Target.DealID != "" {
		return failed(res, model.ErrCodeInvalidTarget, "a new deal cannot carry a deal id")
	}
	updating := req.Target.UpdatesExisting()
	var upd dealUpdate
	if updating {
		upd = o.allowedDealFields(ctx, ext, req.AllowedFields)
		if len(upd.fields) == 0 {
			return failed(res, model.ErrCodeNoFieldsToUpdate, "none of the allowed fields can be updated from this extraction")
		}
	}

	approvalID := req.ApprovalID
	if approvalID == "" {
		approvalID = uuid.NewString()
	}
	rec := &recorder{ledger: o.ledger, approvalID: approvalID, connectionID: o.cfg.ConnectionID}
	log := zap.L().With(zap.String("approval_id", approvalID))

	res.CompanyID = o.syncCompany(ctx, rec, ext)
	res.ContactID = o.syncContact(ctx, rec, ext)
	if res.CompanyID != "" && res.ContactID != "" {
		o.associate(ctx, nil, "", hubspot.ObjectContacts, res.ContactID, hubspot.ObjectCompanies, res.CompanyID, hubspot.AssocContactToCompany)
	}

	var err error
	if updating {
		res.DealID = req.Target.DealID
		err = o.updateDeal(ctx, rec, req, upd)
	} else {
		var pending []pendingAssoc
		res.DealID, pending, err = o.createDeal(ctx, rec, ext, res.CompanyID, res.ContactID)
		if err == nil {
			res.DealCreated = true
			for _, p := range pending {
				o.associate(ctx, rec, model.ActionAssociateDeal, hubspot.ObjectDeals, res.DealID, p.toType, p.toID, p.typeID)
			}
		}
	}
	if err != nil {
		code, msg := classify(err)
		log.Error("syncer: deal step failed", zap.String("code", string(code)), zap.Error(err))
		return failed(res, code, msg)
	}

	o.syncTasks(ctx, rec, req, res.DealID, res.DealCreated, &res)

	res.Success = true
	log.Info("syncer: sync complete",
		zap.String("deal_id", res.DealID),
		zap.Bool("deal_created", res.DealCreated),
		zap.String("company_id", res.CompanyID),
		zap.String("contact_id", res.ContactID),
	)
	return res
}

func (o *Orchestrator) syncCompany(ctx context.Context, rec *recorder, ext *model.Extraction) string {
	if !ext.HasCompany() {
		return ""
	}
	name := strings.TrimSpace(ext.CompanyName)

	found, err := hubspot.FindCompanyByName(ctx, o.crm, name)
	if err != nil {
		s := rec.begin(ctx, model.ActionCreateCompany, hubspot.ObjectCompanies, map[string]string{"name": name})
		s.fail(ctx, err)
		zap.L().Warn("syncer: company lookup failed", zap.String("company", name), zap.Error(err))
		return ""
	}
	if found != nil {
		return found.ID
	}

	props := o.mapper.SanitizeEnumProperties(ctx, hubspot.ObjectCompanies, mapper.MapCompanyProperties(ext))
	s := rec.begin(ctx, model.ActionCreateCompany, hubspot.ObjectCompanies, props)
	obj, err := o.crm.CreateObject(s.ctx(ctx), hubspot.ObjectCompanies, hubspot.CreateInput{Properties: props})
	if err != nil {
		s.fail(ctx, err)
		zap.L().Warn("syncer: company create failed", zap.String("company", name), zap.Error(err))
		return ""
	}
	s.succeed(ctx, obj.ID)
	return obj.ID
}

func (o *Orchestrator) syncContact(ctx context.Context, rec *recorder, ext *model.Extraction) string {
	if !ext.HasContact() {
		return ""
	}
	email := strings.TrimSpace(ext.ContactEmail)
	if email == "" {
		email = mapper.PlaceholderEmail(ext.ContactName, ext.CompanyName, o.cfg.PlaceholderEmailDomain)
		if email == "" {
			zap.L().Warn("syncer: contact name yields no placeholder email, skipping contact")
			return ""
		}
	}

	found, err := hubspot.FindContactByEmail(ctx, o.crm, email)
	if err != nil {
		s := rec.begin(ctx, model.ActionCreateContact, hubspot.ObjectContacts, map[string]string{"email": email})
		s.fail(ctx, err)
		zap.L().Warn("syncer: contact lookup failed", zap.Error(err))
		return ""
	}
	if found != nil {
		return found.ID
	}

	props := o.mapper.SanitizeEnumProperties(ctx, hubspot.ObjectContacts, mapper.MapContactProperties(ext, email))
	s := rec.begin(ctx, model.ActionCreateContact, hubspot.ObjectContacts, props)
	obj, err := o.crm.CreateObject(s.ctx(ctx), hubspot.ObjectContacts, hubspot.CreateInput{Properties: props})
	if err != nil {
		if id, ok := hubspot.ExistingID(err); ok {
			s.failResolved(ctx, id, err)
			zap.L().Info("syncer: contact already exists", zap.String("contact_id", id))
			return id
		}
		s.fail(ctx, err)
		zap.L().Warn("syncer: contact create failed", zap.Error(err))
		return ""
	}
	s.succeed(ctx, obj.ID)
	return obj.ID
}

// associate links two records. With a nil recorder the attempt is not
// audited and failures are only logged.
func (o *Orchestrator) associate(ctx context.Context, rec *recorder, action model.AuditAction, fromType, fromID, toType, toID string, typeID int) {
	if rec == nil {
		if err := o.crm.Associate(ctx, fromType, fromID, toType, toID, typeID); err != nil {
			zap.L().Debug("syncer: association failed",
				zap.String("from", fromType+"/"+fromID),
				zap.String("to", toType+"/"+toID),
				zap.Error(err),
			)
		}
		return
	}

	s := rec.begin(ctx, action, fromType, map[string]any{
		"from_id": fromID, "to_type": toType, "to_id": toID, "type_id": typeID,
	})
	if err := o.crm.Associate(s.ctx(ctx), fromType, fromID, toType, toID, typeID); err != nil {
		s.fail(ctx, err)
		zap.L().Warn("syncer: association failed",
			zap.String("from", fromType+"/"+fromID),
			zap.String("to", toType+"/"+toID),
			zap.Error(err),
		)
		return
	}
	s.succeed(ctx, fromID)
}

type pendingAssoc struct {
	toType string
	toID   string
	typeID int
}

// createDeal creates the deal with inline associations. When the CRM
// rejects the associations, the deal is created bare and the associations
// are returned for a separate attempt.
func (o *Orchestrator) createDeal(ctx context.Context, rec *recorder, ext *model.Extraction, companyID, contactID string) (string, []pendingAssoc, error) {
	props := o.mapper.SanitizeEnumProperties(ctx, hubspot.ObjectDeals, o.mapper.MapDeal(ctx, ext, ""))

	var assocs []hubspot.Association
	var pending []pendingAssoc
	if companyID != "" {
		assocs = append(assocs, hubspot.NewAssociation(companyID, hubspot.AssocDealToCompany))
		pending = append(pending, pendingAssoc{hubspot.ObjectCompanies, companyID, hubspot.AssocDealToCompany})
	}
	if contactID != "" {
		assocs = append(assocs, hubspot.NewAssociation(contactID, hubspot.AssocDealToContact))
		pending = append(pending, pendingAssoc{hubspot.ObjectContacts, contactID, hubspot.AssocDealToContact})
	}

	in := hubspot.CreateInput{Properties: props, Associations: assocs}
	s := rec.begin(ctx, model.ActionCreateDeal, hubspot.ObjectDeals, in)
	obj, err := o.crm.CreateObject(s.ctx(ctx), hubspot.ObjectDeals, in)
	if err != nil && len(assocs) > 0 && hubspot.KindOf(err) == hubspot.KindValidation {
		zap.L().Warn("syncer: deal create rejected with associations, retrying without", zap.Error(err))
		obj, err = o.crm.CreateObject(s.ctx(ctx), hubspot.ObjectDeals, hubspot.CreateInput{Properties: props})
		if err == nil {
			s.succeed(ctx, obj.ID)
			return obj.ID, pending, nil
		}
	}
	if err != nil {
		s.fail(ctx, err)
		return "", nil, err
	}
	s.succeed(ctx, obj.ID)
	return obj.ID, nil, nil
}

// dealUpdate holds the allowed fields the mapping actually produced.
type dealUpdate struct {
	fields   []string
	incoming map[string]string
}

// allowedDealFields maps the extraction as the deal write does and keeps the
// allowed keys. It runs before any company or contact write.
func (o *Orchestrator) allowedDealFields(ctx context.Context, ext *model.Extraction, allowed []string) dealUpdate {
	upd := dealUpdate{incoming: make(map[string]string)}
	if len(allowed) == 0 {
		return upd
	}
	mapped := o.mapper.MapDeal(ctx, ext, "")
	for _, f := range allowed {
		if v, ok := mapped[f]; ok && !slices.Contains(upd.fields, f) {
			upd.fields = append(upd.fields, f)
			upd.incoming[f] = v
		}
	}
	return upd
}

func (o *Orchestrator) updateDeal(ctx context.Context, rec *recorder, req Request, upd dealUpdate) error {
	dealID := req.Target.DealID
	fields, incoming := upd.fields, upd.incoming
	if len(fields) == 0 {
		return errNoFields
	}

	s := rec.begin(ctx, model.ActionUpdateDeal, hubspot.ObjectDeals, incoming)
	fetch := slices.Clone(hubspot.DealProperties)
	for _, f := range fields {
		if !slices.Contains(fetch, f) {
			fetch = append(fetch, f)
		}
	}
	current, err := o.crm.GetObject(s.ctx(ctx), hubspot.ObjectDeals, dealID, fetch)
	if err != nil {
		s.fail(ctx, err)
		return err
	}

	merged, err := o.merger.MergeProperties(ctx, merge.PropertyRequest{
		Existing:      current.Properties,
		New:           incoming,
		AllowedFields: fields,
		Transcript:    req.Transcript,
	})
	if err != nil {
		zap.L().Warn("syncer: property merge failed, using extracted values", zap.Error(err))
		merged = incoming
	}

	changes := Diff(current.Properties, o.mapper.SanitizeEnumProperties(ctx, hubspot.ObjectDeals, merged))
	if len(changes) == 0 {
		zap.L().Info("syncer: deal already up to date", zap.String("deal_id", dealID))
		s.succeed(ctx, dealID)
		return nil
	}

	if _, err := o.crm.UpdateObject(s.ctx(ctx), hubspot.ObjectDeals, dealID, changes); err != nil {
		s.fail(ctx, err)
		return err
	}
	s.succeed(ctx, dealID)
	return nil
}

var errNoFields = errors.New("no fields to update")

func failed(res model.SyncResult, code model.ErrorCode, msg string) model.SyncResult {
	res.Success = false
	res.ErrorCode = code
	res.ErrorMessage = msg
	return res
}
