package syncer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dealsync/internal/mapper"
	"github.com/sells-group/dealsync/internal/merge"
	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/internal/normalize"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

// syncTasks creates, reschedules or cancels follow-up tasks of the deal.
// Failures are logged and audited, never returned.
func (o *Orchestrator) syncTasks(ctx context.Context, rec *recorder, req Request, dealID string, created bool, res *model.SyncResult) {
	steps := nonEmpty(req.Extraction.NextSteps)
	if len(steps) == 0 {
		return
	}

	if created {
		res.TasksCreated = o.createNextSteps(ctx, rec, dealID, steps)
		return
	}

	objs, err := hubspot.DealTasks(ctx, o.crm, dealID)
	if err != nil {
		zap.L().Warn("syncer: could not load deal tasks, skipping task sync", zap.String("deal_id", dealID), zap.Error(err))
		return
	}
	existing := make([]model.Task, 0, len(objs))
	for _, obj := range objs {
		existing = append(existing, TaskFromObject(obj))
	}
	if len(existing) == 0 {
		res.TasksCreated = o.createNextSteps(ctx, rec, dealID, steps)
		return
	}

	plan, err := o.merger.MergeTasks(ctx, merge.TaskRequest{
		Existing:   existing,
		Extraction: req.Extraction,
		Transcript: req.Transcript,
	})
	if err != nil {
		zap.L().Warn("syncer: task merge failed", zap.Error(err))
		plan = merge.TaskPlan{Degraded: true}
	}

	if plan.Degraded {
		known := make(map[string]bool, len(existing))
		for _, t := range existing {
			known[normalize.Fold(t.Subject)] = true
		}
		var fresh []string
		for _, s := range steps {
			if !known[normalize.Fold(s)] {
				fresh = append(fresh, s)
			}
		}
		res.TasksCreated = o.createNextSteps(ctx, rec, dealID, fresh)
		return
	}

	for _, add := range plan.Add {
		due := o.defaultDue(add.Subject)
		if add.DueDate != nil {
			due = *add.DueDate
		}
		if o.createTask(ctx, rec, dealID, add.Subject, add.Body, due) {
			res.TasksCreated++
		}
	}
	for _, upd := range plan.Update {
		if o.updateTask(ctx, rec, upd) {
			res.TasksUpdated++
		}
	}
	for _, id := range plan.Delete {
		if o.deleteTask(ctx, rec, id) {
			res.TasksDeleted++
		}
	}
}

func (o *Orchestrator) createNextSteps(ctx context.Context, rec *recorder, dealID string, steps []string) int {
	n := 0
	for _, s := range steps {
		if o.createTask(ctx, rec, dealID, s, "", o.defaultDue(s)) {
			n++
		}
	}
	return n
}

func (o *Orchestrator) defaultDue(phrase string) time.Time {
	return mapper.NextStepDueDate(phrase, o.now(), o.cfg.TaskDueDays)
}

func (o *Orchestrator) createTask(ctx context.Context, rec *recorder, dealID, subject, body string, due time.Time) bool {
	in := hubspot.CreateInput{
		Properties:   mapper.TaskProperties(subject, body, due),
		Associations: []hubspot.Association{hubspot.NewAssociation(dealID, hubspot.AssocTaskToDeal)},
	}
	s := rec.begin(ctx, model.ActionCreateTask, hubspot.ObjectTasks, in)
	obj, err := o.crm.CreateObject(s.ctx(ctx), hubspot.ObjectTasks, in)
	if err != nil {
		s.fail(ctx, err)
		zap.L().Warn("syncer: task create failed", zap.String("subject", subject), zap.Error(err))
		return false
	}
	s.succeed(ctx, obj.ID)
	return true
}

func (o *Orchestrator) updateTask(ctx context.Context, rec *recorder, upd merge.TaskUpdate) bool {
	props := make(map[string]string)
	if upd.Subject != "" {
		props["hs_task_subject"] = upd.Subject
	}
	if upd.DueDate != nil {
		props["hs_timestamp"] = strconv.FormatInt(upd.DueDate.UnixMilli(), 10)
	}
	s := rec.begin(ctx, model.ActionUpdateTask, hubspot.ObjectTasks, map[string]any{"id": upd.ID, "properties": props})
	if _, err := o.crm.UpdateObject(s.ctx(ctx), hubspot.ObjectTasks, upd.ID, props); err != nil {
		s.fail(ctx, err)
		zap.L().Warn("syncer: task update failed", zap.String("task_id", upd.ID), zap.Error(err))
		return false
	}
	s.succeed(ctx, upd.ID)
	return true
}

func (o *Orchestrator) deleteTask(ctx context.Context, rec *recorder, id string) bool {
	s := rec.begin(ctx, model.ActionDeleteTask, hubspot.ObjectTasks, map[string]string{"id": id})
	if err := o.crm.DeleteObject(s.ctx(ctx), hubspot.ObjectTasks, id); err != nil {
		s.fail(ctx, err)
		zap.L().Warn("syncer: task delete failed", zap.String("task_id", id), zap.Error(err))
		return false
	}
	s.succeed(ctx, id)
	return true
}

// TaskFromObject converts a CRM task record.
func TaskFromObject(obj hubspot.Object) model.Task {
	t := model.Task{
		ID:      obj.ID,
		Subject: obj.Get("hs_task_subject"),
		Body:    obj.Get("hs_task_body"),
		Status:  obj.Get("hs_task_status"),
	}
	if ms, ok := instant(obj.Get("hs_timestamp")); ok {
		due := time.UnixMilli(ms).UTC()
		t.DueDate = &due
	}
	return t
}

func nonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
