package flow_test

import (
	"context"
	"testing"

	"conveyor/bizerror"
	"conveyor/domain"
	"conveyor/domain/flow"
	"conveyor/idgen"
	"conveyor/persistence"
	"conveyor/testinfra"

	. "github.com/onsi/gomega"
	"github.com/sony/sonyflake"
	"github.com/stretchr/testify/assert"
)

func setup(t *testing.T, testDatabase **testinfra.TestDatabase) {
	db := testinfra.StartMysqlTestDatabase("conveyor")
	assert.Nil(t, db.DS.GormDB(context.Background()).AutoMigrate(
		&domain.WorkflowDefinition{}, &domain.WorkflowStep{}, &domain.WorkflowTransition{},
		&domain.WorkflowInstance{}, &domain.WorkflowStepHistory{}, &domain.InstanceCodeRecord{}).Error)
	persistence.ActiveDataSourceManager = db.DS
	*testDatabase = db
}

func teardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

func buildDefinitionCreation() *flow.WorkflowDefinitionCreation {
	return &flow.WorkflowDefinitionCreation{
		Code:     "purchase-approval",
		Name:     "Purchase Approval",
		Category: domain.CategoryPurchase,
		Steps: []flow.StepCreation{
			{Code: "start", Name: "Start", Type: domain.StepStart},
			{Code: "manager-approval", Name: "Manager Approval", Type: domain.StepApproval,
				AssigneeType: domain.AssigneeUser, AssigneeID: 200, SlaHours: 24},
			{Code: "end", Name: "End", Type: domain.StepEnd},
		},
		Transitions: []flow.TransitionCreation{
			{FromStepCode: "start", ToStepCode: "manager-approval"},
			{FromStepCode: "manager-approval", ToStepCode: "end", ConditionType: domain.ConditionApproved},
			{FromStepCode: "manager-approval", ToStepCode: "end", ConditionType: domain.ConditionRejected},
		},
	}
}

func TestCreateWorkflowDefinition(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should return created definition and persist all rows", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		s := testinfra.BuildSession(100, 1)
		detail, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), s)
		Expect(err).To(BeNil())
		Expect(detail.Code).To(Equal("purchase-approval"))
		Expect(detail.TenantID).To(Equal(s.TenantID))
		Expect(detail.TriggerType).To(Equal(domain.TriggerManual))
		Expect(detail.IsActive).To(BeTrue())
		Expect(len(detail.Steps)).To(Equal(3))
		Expect(len(detail.Transitions)).To(Equal(3))
		Expect(detail.Steps[0].Sequence).To(Equal(10001))
		Expect(detail.Steps[2].Sequence).To(Equal(10003))
		Expect(detail.Transitions[0].ConditionType).To(Equal(domain.ConditionAlways))

		db := testDatabase.DS.GormDB(context.Background())
		var definitions []domain.WorkflowDefinition
		Expect(db.Model(&domain.WorkflowDefinition{}).Scan(&definitions).Error).To(BeNil())
		Expect(len(definitions)).To(Equal(1))
		Expect(definitions[0]).To(Equal(detail.WorkflowDefinition))

		var steps []domain.WorkflowStep
		Expect(db.Model(&domain.WorkflowStep{}).Order("sequence ASC").Scan(&steps).Error).To(BeNil())
		Expect(len(steps)).To(Equal(3))
		Expect(steps[0].Code).To(Equal("start"))
		Expect(steps[1].AssigneeID).To(Equal(detail.Steps[1].AssigneeID))

		var transitions []domain.WorkflowTransition
		Expect(db.Model(&domain.WorkflowTransition{}).Order("sequence ASC").Scan(&transitions).Error).To(BeNil())
		Expect(len(transitions)).To(Equal(3))
		Expect(transitions[0].FromStepID).To(Equal(steps[0].ID))
		Expect(transitions[0].ToStepID).To(Equal(steps[1].ID))
	})

	t.Run("should reject duplicated code in the same tenant", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		s := testinfra.BuildSession(100, 1)
		_, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), s)
		Expect(err).To(BeNil())

		_, err = flow.CreateWorkflowDefinition(buildDefinitionCreation(), s)
		Expect(err).To(Equal(bizerror.ErrDefinitionCodeExisted))

		// the same code is free in another tenant
		_, err = flow.CreateWorkflowDefinition(buildDefinitionCreation(), testinfra.BuildSession(101, 2))
		Expect(err).To(BeNil())
	})

	t.Run("should reject a structurally invalid graph", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		creation := buildDefinitionCreation()
		creation.Steps = creation.Steps[0:2] // no END
		creation.Transitions = creation.Transitions[0:1]
		_, err := flow.CreateWorkflowDefinition(creation, testinfra.BuildSession(100, 1))
		Expect(err).To(MatchError(bizerror.ErrInvalidGraph))
	})

	t.Run("should reject transitions referencing unknown step codes", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		creation := buildDefinitionCreation()
		creation.Transitions = append(creation.Transitions,
			flow.TransitionCreation{FromStepCode: "start", ToStepCode: "no-such-step"})
		_, err := flow.CreateWorkflowDefinition(creation, testinfra.BuildSession(100, 1))
		Expect(err).To(Equal(bizerror.ErrUnknownStep))
	})
}

func TestDetailWorkflowDefinition(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should return definition with ordered steps and transitions", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		s := testinfra.BuildSession(100, 1)
		created, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), s)
		Expect(err).To(BeNil())

		detail, err := flow.DetailWorkflowDefinition(created.ID, s)
		Expect(err).To(BeNil())
		Expect(detail.Code).To(Equal(created.Code))
		Expect(len(detail.Steps)).To(Equal(3))
		Expect(detail.Steps[0].Code).To(Equal("start"))
		Expect(detail.Steps[1].Code).To(Equal("manager-approval"))
		Expect(len(detail.Transitions)).To(Equal(3))
	})

	t.Run("should hide definitions of other tenants", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), testinfra.BuildSession(100, 1))
		Expect(err).To(BeNil())

		_, err = flow.DetailWorkflowDefinition(created.ID, testinfra.BuildSession(200, 2))
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})

	t.Run("should return not found for unknown id", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		_, err := flow.DetailWorkflowDefinition(404404, testinfra.BuildSession(100, 1))
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestQueryWorkflowDefinitions(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should filter by tenant, name and category", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		s := testinfra.BuildSession(100, 1)
		c1 := buildDefinitionCreation()
		_, err := flow.CreateWorkflowDefinition(c1, s)
		Expect(err).To(BeNil())

		c2 := buildDefinitionCreation()
		c2.Code = "leave-request"
		c2.Name = "Leave Request"
		c2.Category = domain.CategoryHR
		_, err = flow.CreateWorkflowDefinition(c2, s)
		Expect(err).To(BeNil())

		c3 := buildDefinitionCreation()
		_, err = flow.CreateWorkflowDefinition(c3, testinfra.BuildSession(200, 2))
		Expect(err).To(BeNil())

		definitions, err := flow.QueryWorkflowDefinitions(&domain.WorkflowDefinitionQuery{}, s)
		Expect(err).To(BeNil())
		Expect(len(*definitions)).To(Equal(2))

		definitions, err = flow.QueryWorkflowDefinitions(&domain.WorkflowDefinitionQuery{Name: "Leave"}, s)
		Expect(err).To(BeNil())
		Expect(len(*definitions)).To(Equal(1))
		Expect((*definitions)[0].Code).To(Equal("leave-request"))

		definitions, err = flow.QueryWorkflowDefinitions(&domain.WorkflowDefinitionQuery{Category: domain.CategoryPurchase}, s)
		Expect(err).To(BeNil())
		Expect(len(*definitions)).To(Equal(1))
		Expect((*definitions)[0].Code).To(Equal("purchase-approval"))
	})
}

func TestUpdateWorkflowDefinition(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should update base properties", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		s := testinfra.BuildSession(100, 1)
		created, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), s)
		Expect(err).To(BeNil())

		updated, err := flow.UpdateWorkflowDefinitionBase(created.ID,
			&flow.WorkflowDefinitionBaseUpdation{Name: "Purchase Approval v2", TriggerType: domain.TriggerAutomatic}, s)
		Expect(err).To(BeNil())
		Expect(updated.Name).To(Equal("Purchase Approval v2"))
		Expect(updated.TriggerType).To(Equal(domain.TriggerAutomatic))
		Expect(updated.Code).To(Equal(created.Code))
	})

	t.Run("should flip isActive and keep deactivated definitions out of starting", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		s := testinfra.BuildSession(100, 1)
		created, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), s)
		Expect(err).To(BeNil())

		inactive := false
		Expect(flow.UpdateWorkflowDefinitionStatus(created.ID, &flow.WorkflowDefinitionStatusUpdating{IsActive: &inactive}, s)).To(BeNil())

		detail, err := flow.DetailWorkflowDefinition(created.ID, s)
		Expect(err).To(BeNil())
		Expect(detail.IsActive).To(BeFalse())
	})

	t.Run("should refuse updates from other tenants", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		created, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), testinfra.BuildSession(100, 1))
		Expect(err).To(BeNil())

		_, err = flow.UpdateWorkflowDefinitionBase(created.ID,
			&flow.WorkflowDefinitionBaseUpdation{Name: "hijack"}, testinfra.BuildSession(200, 2))
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestDeleteWorkflowDefinition(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should delete definition with steps and transitions", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		s := testinfra.BuildSession(100, 1)
		created, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), s)
		Expect(err).To(BeNil())

		Expect(flow.DeleteWorkflowDefinition(created.ID, s)).To(BeNil())

		db := testDatabase.DS.GormDB(context.Background())
		var count int
		Expect(db.Model(&domain.WorkflowDefinition{}).Count(&count).Error).To(BeNil())
		Expect(count).To(Equal(0))
		Expect(db.Model(&domain.WorkflowStep{}).Count(&count).Error).To(BeNil())
		Expect(count).To(Equal(0))
		Expect(db.Model(&domain.WorkflowTransition{}).Count(&count).Error).To(BeNil())
		Expect(count).To(Equal(0))
	})

	t.Run("should refuse deleting a referenced definition", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		s := testinfra.BuildSession(100, 1)
		created, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), s)
		Expect(err).To(BeNil())

		db := testDatabase.DS.GormDB(context.Background())
		instance := domain.WorkflowInstance{ID: idgen.NextID(sonyflake.NewSonyflake(sonyflake.Settings{})),
			TenantID: 1, DefinitionID: created.ID, Code: "WF-000001", Status: domain.InstanceInProgress}
		Expect(db.Create(&instance).Error).To(BeNil())

		Expect(flow.DeleteWorkflowDefinition(created.ID, s)).To(Equal(bizerror.ErrDefinitionIsReferenced))
	})
}

func TestEditDefinitionGraph(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should append steps with continued sequence", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		s := testinfra.BuildSession(100, 1)
		created, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), s)
		Expect(err).To(BeNil())

		err = flow.AddWorkflowSteps(created.ID, []flow.StepCreation{
			{Code: "finance-approval", Name: "Finance Approval", Type: domain.StepApproval,
				AssigneeType: domain.AssigneeUser, AssigneeID: 300},
		}, s)
		Expect(err).To(BeNil())

		detail, err := flow.DetailWorkflowDefinition(created.ID, s)
		Expect(err).To(BeNil())
		Expect(len(detail.Steps)).To(Equal(4))
		Expect(detail.Steps[3].Code).To(Equal("finance-approval"))
		Expect(detail.Steps[3].Sequence).To(Equal(10004))
	})

	t.Run("should add and delete transitions by step codes", func(t *testing.T) {
		defer teardown(t, testDatabase)
		setup(t, &testDatabase)

		s := testinfra.BuildSession(100, 1)
		created, err := flow.CreateWorkflowDefinition(buildDefinitionCreation(), s)
		Expect(err).To(BeNil())

		err = flow.AddWorkflowTransitions(created.ID, []flow.TransitionCreation{
			{FromStepCode: "start", ToStepCode: "end", ConditionType: domain.ConditionExpression, Condition: "amount == 0"},
		}, s)
		Expect(err).To(BeNil())

		detail, err := flow.DetailWorkflowDefinition(created.ID, s)
		Expect(err).To(BeNil())
		Expect(len(detail.Transitions)).To(Equal(4))

		err = flow.DeleteWorkflowTransitions(created.ID, []flow.TransitionDeletion{
			{FromStepCode: "start", ToStepCode: "end"},
		}, s)
		Expect(err).To(BeNil())

		detail, err = flow.DetailWorkflowDefinition(created.ID, s)
		Expect(err).To(BeNil())
		Expect(len(detail.Transitions)).To(Equal(3))

		err = flow.AddWorkflowTransitions(created.ID, []flow.TransitionCreation{
			{FromStepCode: "start", ToStepCode: "nowhere"},
		}, s)
		Expect(err).To(Equal(bizerror.ErrUnknownStep))
	})
}
