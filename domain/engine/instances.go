package engine

import (
	"fmt"

	"conveyor/bizerror"
	"conveyor/common"
	"conveyor/domain"
	"conveyor/domain/flow"
	"conveyor/domain/graph"
	"conveyor/event"
	"conveyor/idgen"
	"conveyor/persistence"
	"conveyor/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

const sourceTypeInstance = "workflow_instance"

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	StartWorkflowFunc          = StartWorkflow
	ExecuteStepFunc            = ExecuteStep
	ApproveTaskFunc            = ApproveTask
	RejectTaskFunc             = RejectTask
	DelegateTaskFunc           = DelegateTask
	CompleteTaskFunc           = CompleteTask
	CancelWorkflowFunc         = CancelWorkflow
	DetailWorkflowInstanceFunc = DetailWorkflowInstance
	QueryWorkflowInstancesFunc = QueryWorkflowInstances
	QueryMyPendingTasksFunc    = QueryMyPendingTasks
)

// StartWorkflow creates an instance of an active definition, records the START
// marker and opens the first real task. A START step with no outgoing
// transition leaves the instance stalled: IN_PROGRESS with no open task,
// which stays visible to instance queries.
func StartWorkflow(c *InstanceCreation, s *session.Session) (*domain.WorkflowInstanceDetail, error) {
	now := common.CurrentTimestamp()
	var detail *domain.WorkflowInstanceDetail

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		defDetail, err := flow.LoadDefinitionDetail(tx, c.DefinitionID, s.TenantID)
		if err != nil {
			return err
		}
		if !defDetail.IsActive {
			return bizerror.ErrNotFound
		}
		g := graph.NewGraph(defDetail.Steps, defDetail.Transitions)
		start, found := g.FindStart()
		if !found {
			return fmt.Errorf("%w: definition %s has no unique START step", bizerror.ErrInvalidState, defDetail.Code)
		}

		code, err := nextInstanceCode(tx, s.TenantID)
		if err != nil {
			return err
		}

		data := c.Data
		if data == nil {
			data = domain.ContextData{}
		}
		instance := domain.WorkflowInstance{
			ID:            idgen.NextID(idWorker),
			TenantID:      s.TenantID,
			DefinitionID:  defDetail.ID,
			Code:          code,
			Status:        domain.InstanceInProgress,
			CurrentStepID: start.ID,
			EntityType:    c.EntityType,
			EntityID:      c.EntityID,
			Data:          data,
			StartedBy:     s.Identity.ID,
			StartTime:     now,
		}
		if err := tx.Create(&instance).Error; err != nil {
			return err
		}

		// START is an entry marker, never a human task
		startRow := newHistoryRow(&instance, start, now)
		startRow.Status = domain.TaskCompleted
		startRow.CompletedBy = s.Identity.ID
		startRow.CompleteTime = now
		if err := tx.Create(startRow).Error; err != nil {
			return err
		}
		histories := []domain.WorkflowStepHistory{*startRow}

		next, err := graph.Resolve(g.OutgoingTransitions(start.ID), "", data, ActiveEvaluator)
		if err != nil {
			return err
		}
		if next == nil {
			common.Log.Warnf("workflow instance %s stalled at START step of definition %s", code, defDetail.Code)
			if err := event.CreateEvent(sourceTypeInstance, instance.ID, code, event.EventCategoryStalled,
				nil, &s.Identity, tx); err != nil {
				return err
			}
		} else {
			nextStep, found := g.FindStep(next.ToStepID)
			if !found {
				return bizerror.ErrUnknownStep
			}
			if nextStep.Type == domain.StepEnd {
				if err := finalize(tx, &instance, nextStep, "", now, s); err != nil {
					return err
				}
				endRow := newHistoryRow(&instance, nextStep, now)
				endRow.Status = domain.TaskCompleted
				endRow.CompletedBy = s.Identity.ID
				endRow.CompleteTime = now
				if err := tx.Create(endRow).Error; err != nil {
					return err
				}
				histories = append(histories, *endRow)
			} else {
				taskRow, err := openTask(tx, &instance, nextStep, now)
				if err != nil {
					return err
				}
				instance.CurrentStepID = nextStep.ID
				if err := updateInstanceInProgress(tx, instance.ID, map[string]interface{}{
					"current_step_id": nextStep.ID,
				}); err != nil {
					return err
				}
				histories = append(histories, *taskRow)
			}
		}

		if err := event.CreateEvent(sourceTypeInstance, instance.ID, code, event.EventCategoryCreated,
			nil, &s.Identity, tx); err != nil {
			return err
		}

		detail = &domain.WorkflowInstanceDetail{WorkflowInstance: instance, Histories: histories}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ExecuteStep advances an instance with an explicit action. The specialized
// entry points below are thin wrappers over the same algorithm.
func ExecuteStep(instanceID types.ID, c *TaskActionRequest, s *session.Session) (*domain.WorkflowInstance, error) {
	if c.Action == domain.ActionDelegated && c.DelegateTo == 0 {
		return nil, bizerror.ErrMissingDelegateAssignee
	}
	return advance(instanceID, c.Action, c.Comments, c.DelegateTo, c.Data, nil, s)
}

func ApproveTask(instanceID types.ID, c *ApprovalRequest, s *session.Session) (*domain.WorkflowInstance, error) {
	return advance(instanceID, domain.ActionApproved, c.Comments, 0, c.Data, requireStepType(domain.StepApproval), s)
}

func RejectTask(instanceID types.ID, c *RejectionRequest, s *session.Session) (*domain.WorkflowInstance, error) {
	if c.Reason == "" {
		return nil, bizerror.ErrMissingRejectionReason
	}
	return advance(instanceID, domain.ActionRejected, c.Reason, 0, c.Data, requireStepType(domain.StepApproval), s)
}

func DelegateTask(instanceID types.ID, c *DelegationRequest, s *session.Session) (*domain.WorkflowInstance, error) {
	if c.ToUserID == 0 {
		return nil, bizerror.ErrMissingDelegateAssignee
	}
	return advance(instanceID, domain.ActionDelegated, c.Comments, c.ToUserID, nil, nil, s)
}

func CompleteTask(instanceID types.ID, c *CompletionRequest, s *session.Session) (*domain.WorkflowInstance, error) {
	return advance(instanceID, domain.ActionCompleted, c.Comments, 0, c.Data,
		requireStepType(domain.StepTask, domain.StepDecision, domain.StepNotification), s)
}

func requireStepType(accepted ...domain.StepType) func(domain.WorkflowStep) error {
	return func(step domain.WorkflowStep) error {
		for _, t := range accepted {
			if step.Type == t {
				return nil
			}
		}
		return fmt.Errorf("%w: action not acceptable for step type %s", bizerror.ErrInvalidState, step.Type)
	}
}

// advance is the single advance primitive: validate the instance, close the
// open task with a conditional write, then either reopen (delegation), open
// the next task, finalize, or stall observably.
func advance(instanceID types.ID, action domain.TaskAction, comments string, delegateTo types.ID,
	dataPatch domain.ContextData, precondition func(domain.WorkflowStep) error, s *session.Session) (*domain.WorkflowInstance, error) {

	now := common.CurrentTimestamp()
	var result *domain.WorkflowInstance

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		instance := domain.WorkflowInstance{}
		if err := loadTenantInstance(tx, instanceID, s.TenantID, &instance); err != nil {
			return err
		}
		if instance.Status != domain.InstanceInProgress || instance.CurrentStepID == 0 {
			return fmt.Errorf("%w: instance %s is not advanceable", bizerror.ErrInvalidState, instance.Code)
		}

		defDetail, err := flow.LoadDefinitionDetail(tx, instance.DefinitionID, s.TenantID)
		if err != nil {
			return err
		}
		g := graph.NewGraph(defDetail.Steps, defDetail.Transitions)
		currentStep, found := g.FindStep(instance.CurrentStepID)
		if !found {
			return bizerror.ErrUnknownStep
		}
		if precondition != nil {
			if err := precondition(currentStep); err != nil {
				return err
			}
		}

		pending := domain.WorkflowStepHistory{}
		err = tx.Where(&domain.WorkflowStepHistory{InstanceID: instance.ID, StepID: instance.CurrentStepID, Status: domain.TaskPending}).
			First(&pending).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: instance %s has no open task", bizerror.ErrInvalidState, instance.Code)
			}
			return err
		}

		// single conditional write: of two concurrent actors, exactly one
		// closes the row, the other sees zero affected rows and a conflict
		closing := tx.Model(&domain.WorkflowStepHistory{}).
			Where("id = ? AND status = ?", pending.ID, domain.TaskPending).
			Updates(map[string]interface{}{
				"status":        domain.TaskCompleted,
				"action":        action,
				"completed_by":  s.Identity.ID,
				"complete_time": now,
				"comments":      comments,
				"data":          dataPatch,
			})
		if err := closing.Error; err != nil {
			return err
		}
		if closing.RowsAffected != 1 {
			return bizerror.ErrConflict
		}

		if action == domain.ActionDelegated {
			// delegation reopens the same step for the new assignee and never
			// advances the graph; the original due time is kept
			delegated := newHistoryRow(&instance, currentStep, now)
			delegated.AssignedTo = delegateTo
			delegated.DueTime = pending.DueTime
			if err := tx.Create(delegated).Error; err != nil {
				return err
			}
			if err := event.CreateEvent(sourceTypeInstance, instance.ID, instance.Code, event.EventCategoryPropertyUpdated,
				[]event.UpdatedProperty{{PropertyName: "assignedTo", OldValue: pending.AssignedTo.String(), NewValue: delegateTo.String()}},
				&s.Identity, tx); err != nil {
				return err
			}
			result = &instance
			return nil
		}

		merged := instance.Data.Merge(dataPatch)
		instance.Data = merged

		next, err := graph.Resolve(g.OutgoingTransitions(currentStep.ID), action, merged, ActiveEvaluator)
		if err != nil {
			return err
		}

		if next == nil {
			// degenerate stall: the step has no outgoing edges; the instance
			// stays IN_PROGRESS with no open task and must remain queryable
			common.Log.Warnf("workflow instance %s stalled after step %s: no outgoing transition", instance.Code, currentStep.Code)
			// no guarded write here: the closed task row already elected this
			// actor, and MySQL reports zero affected rows for a no-op update
			if err := tx.Model(&domain.WorkflowInstance{}).Where("id = ?", instance.ID).
				Update("data", merged).Error; err != nil {
				return err
			}
			if err := event.CreateEvent(sourceTypeInstance, instance.ID, instance.Code, event.EventCategoryStalled,
				nil, &s.Identity, tx); err != nil {
				return err
			}
			result = &instance
			return nil
		}

		nextStep, found := g.FindStep(next.ToStepID)
		if !found {
			return bizerror.ErrUnknownStep
		}

		if nextStep.Type == domain.StepEnd {
			if err := finalize(tx, &instance, nextStep, action, now, s); err != nil {
				return err
			}
			endRow := newHistoryRow(&instance, nextStep, now)
			endRow.Status = domain.TaskCompleted
			endRow.CompletedBy = s.Identity.ID
			endRow.CompleteTime = now
			if err := tx.Create(endRow).Error; err != nil {
				return err
			}
			result = &instance
			return nil
		}

		if _, err := openTask(tx, &instance, nextStep, now); err != nil {
			return err
		}
		if err := updateInstanceInProgress(tx, instance.ID, map[string]interface{}{
			"current_step_id": nextStep.ID,
			"data":            merged,
		}); err != nil {
			return err
		}
		if err := event.CreateEvent(sourceTypeInstance, instance.ID, instance.Code, event.EventCategoryPropertyUpdated,
			[]event.UpdatedProperty{{PropertyName: "currentStep", OldValue: currentStep.Code, NewValue: nextStep.Code}},
			&s.Identity, tx); err != nil {
			return err
		}
		instance.CurrentStepID = nextStep.ID
		result = &instance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelWorkflow is callable at any pre-terminal time. It closes the
// outstanding open task as CANCELLED in the same transaction, keeping the
// at-most-one-PENDING invariant intact.
func CancelWorkflow(instanceID types.ID, c *CancellationRequest, s *session.Session) (*domain.WorkflowInstance, error) {
	now := common.CurrentTimestamp()
	var result *domain.WorkflowInstance

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		instance := domain.WorkflowInstance{}
		if err := loadTenantInstance(tx, instanceID, s.TenantID, &instance); err != nil {
			return err
		}
		if instance.Status.IsTerminal() {
			return fmt.Errorf("%w: instance %s is already terminal", bizerror.ErrInvalidState, instance.Code)
		}

		if err := updateInstanceInProgress(tx, instance.ID, map[string]interface{}{
			"status":        domain.InstanceCancelled,
			"cancelled_by":  s.Identity.ID,
			"cancel_time":   now,
			"cancel_reason": c.Reason,
		}); err != nil {
			return err
		}
		if err := tx.Model(&domain.WorkflowStepHistory{}).
			Where("instance_id = ? AND status = ?", instance.ID, domain.TaskPending).
			Updates(map[string]interface{}{
				"status":        domain.TaskCancelled,
				"completed_by":  s.Identity.ID,
				"complete_time": now,
				"comments":      c.Reason,
			}).Error; err != nil {
			return err
		}

		if err := event.CreateEvent(sourceTypeInstance, instance.ID, instance.Code, event.EventCategoryCancelled,
			[]event.UpdatedProperty{{PropertyName: "status", OldValue: string(instance.Status), NewValue: string(domain.InstanceCancelled)}},
			&s.Identity, tx); err != nil {
			return err
		}

		instance.Status = domain.InstanceCancelled
		instance.CancelledBy = s.Identity.ID
		instance.CancelTime = now
		instance.CancelReason = c.Reason
		result = &instance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func DetailWorkflowInstance(instanceID types.ID, s *session.Session) (*domain.WorkflowInstanceDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	detail := domain.WorkflowInstanceDetail{}
	if err := loadTenantInstance(db, instanceID, s.TenantID, &detail.WorkflowInstance); err != nil {
		return nil, err
	}
	if err := db.Where(domain.WorkflowStepHistory{InstanceID: instanceID}).
		Order("begin_time ASC, id ASC").Find(&detail.Histories).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

func QueryWorkflowInstances(query *domain.WorkflowInstanceQuery, s *session.Session) (*[]domain.WorkflowInstance, error) {
	var instances []domain.WorkflowInstance
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	q := db.Where(domain.WorkflowInstance{TenantID: s.TenantID})
	if query.DefinitionID != 0 {
		q = q.Where(domain.WorkflowInstance{DefinitionID: query.DefinitionID})
	}
	if query.Status != "" {
		q = q.Where(domain.WorkflowInstance{Status: query.Status})
	}
	if query.EntityType != "" {
		q = q.Where(domain.WorkflowInstance{EntityType: query.EntityType})
	}
	if query.EntityID != 0 {
		q = q.Where(domain.WorkflowInstance{EntityID: query.EntityID})
	}
	if err := q.Order("start_time ASC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return &instances, nil
}

// QueryMyPendingTasks lists the open PENDING rows assigned to the session
// actor: the task inbox.
func QueryMyPendingTasks(s *session.Session) (*[]domain.WorkflowStepHistory, error) {
	var tasks []domain.WorkflowStepHistory
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Where(domain.WorkflowStepHistory{TenantID: s.TenantID, AssignedTo: s.Identity.ID, Status: domain.TaskPending}).
		Order("begin_time ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return &tasks, nil
}

func newHistoryRow(instance *domain.WorkflowInstance, step domain.WorkflowStep, now common.Timestamp) *domain.WorkflowStepHistory {
	return &domain.WorkflowStepHistory{
		ID:         idgen.NextID(idWorker),
		TenantID:   instance.TenantID,
		InstanceID: instance.ID,
		StepID:     step.ID,
		StepCode:   step.Code,
		StepName:   step.Name,
		StepType:   step.Type,
		Status:     domain.TaskPending,
		BeginTime:  now,
	}
}

func openTask(tx *gorm.DB, instance *domain.WorkflowInstance, step domain.WorkflowStep, now common.Timestamp) (*domain.WorkflowStepHistory, error) {
	assignedTo, dueTime, err := ResolveAssignment(step, now, instance.Data)
	if err != nil {
		return nil, err
	}
	row := newHistoryRow(instance, step, now)
	row.AssignedTo = assignedTo
	row.DueTime = dueTime
	if err := tx.Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// finalize moves an instance into its terminal status: REJECTED when the
// closing action was a rejection, COMPLETED otherwise.
func finalize(tx *gorm.DB, instance *domain.WorkflowInstance, endStep domain.WorkflowStep,
	action domain.TaskAction, now common.Timestamp, s *session.Session) error {

	status := domain.InstanceCompleted
	if action == domain.ActionRejected {
		status = domain.InstanceRejected
	}
	if err := updateInstanceInProgress(tx, instance.ID, map[string]interface{}{
		"status":          status,
		"end_time":        now,
		"current_step_id": endStep.ID,
		"data":            instance.Data,
	}); err != nil {
		return err
	}
	if err := event.CreateEvent(sourceTypeInstance, instance.ID, instance.Code, event.EventCategoryFinalized,
		[]event.UpdatedProperty{{PropertyName: "status", OldValue: string(domain.InstanceInProgress), NewValue: string(status)}},
		&s.Identity, tx); err != nil {
		return err
	}
	instance.Status = status
	instance.EndTime = now
	instance.CurrentStepID = endStep.ID
	return nil
}

// updateInstanceInProgress is the conditional instance write: it only lands
// while the instance is still IN_PROGRESS, so a terminal or concurrently
// advanced instance rejects the move.
func updateInstanceInProgress(tx *gorm.DB, instanceID types.ID, updates map[string]interface{}) error {
	q := tx.Model(&domain.WorkflowInstance{}).
		Where("id = ? AND status = ?", instanceID, domain.InstanceInProgress).
		Updates(updates)
	if err := q.Error; err != nil {
		return err
	}
	if q.RowsAffected != 1 {
		return bizerror.ErrConflict
	}
	return nil
}

func loadTenantInstance(db *gorm.DB, instanceID types.ID, tenantID types.ID, out *domain.WorkflowInstance) error {
	if err := db.Where(&domain.WorkflowInstance{ID: instanceID}).First(out).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return bizerror.ErrNotFound
		}
		return err
	}
	if out.TenantID != tenantID {
		return bizerror.ErrNotFound
	}
	return nil
}

func nextInstanceCode(tx *gorm.DB, tenantID types.ID) (string, error) {
	record := domain.InstanceCodeRecord{}
	err := tx.Set("gorm:query_option", "FOR UPDATE").
		Where(&domain.InstanceCodeRecord{TenantID: tenantID}).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		record = domain.InstanceCodeRecord{TenantID: tenantID, NextNum: 1}
		if err := tx.Create(&record).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	if err := tx.Model(&domain.InstanceCodeRecord{}).Where("tenant_id = ?", tenantID).
		Update("next_num", record.NextNum+1).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("WF-%06d", record.NextNum), nil
}
