package reconciliation_test

import (
	"testing"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/persistence/testdb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRule_AppliesToTBDEntries(t *testing.T) {
	f := newFixture(t)
	north := f.createProject(t, "North")
	other := f.createProject(t, "Other")

	f.ingestPOs(t,
		poLine("4500001", 1, "1", "1", "NE-001", termSplit, "2024-01-10"),
		poLine("4500001", 2, "1", "1", "NE-002", termSplit, "2024-01-10"),
		poLine("4500001", 3, "1", "1", "NE-003", termSplit, "2024-01-10"),
		poLine("4500001", 4, "1", "1", "", termSplit, "2024-01-10"),
		poLine("4500001", 5, "1", "1", "SW-001", termSplit, "2024-01-10"),
	)
	f.mergePOs(t)

	// a pinned site keeps its project, even one pinned to TBD
	_, err := f.svc.AssignSiteToProject(f.ctx, "NE-002", "Other")
	require.NoError(t, err)
	_, err = f.svc.AssignSiteToProject(f.ctx, "NE-003", "TBD")
	require.NoError(t, err)

	res, err := f.svc.CreateRule(f.ctx, reconciliation.CreateRuleInput{
		Name:            "north sites",
		TargetProjectID: &north.ID,
		SitePrefix:      "NE-",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Reassigned)
	assert.Equal(t, "NE-", res.Rule.SitePrefix)

	assert.Equal(t, north.ID, f.entry(t, "4500001-1").InternalProjectID)
	assert.Equal(t, other.ID, f.entry(t, "4500001-2").InternalProjectID)
	assert.Equal(t, testdb.TBDProjectID, f.entry(t, "4500001-3").InternalProjectID)
	assert.Equal(t, testdb.TBDProjectID, f.entry(t, "4500001-4").InternalProjectID)
	assert.Equal(t, testdb.TBDProjectID, f.entry(t, "4500001-5").InternalProjectID)

	rules, err := f.svc.ListRules(f.ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, north.ID, rules[0].TargetProjectID)
}

func TestCreateRule_LeavesResolvedEntriesAlone(t *testing.T) {
	f := newFixture(t)
	first := f.createProject(t, "First")
	f.createProject(t, "Second")

	_, err := f.svc.CreateRule(f.ctx, reconciliation.CreateRuleInput{Name: "first", TargetProjectName: "First", SiteContains: "01"})
	require.NoError(t, err)
	f.ingestPOs(t, poLine("4500001", 1, "1", "1", "NE-001", termSplit, "2024-01-10"))
	f.mergePOs(t)

	res, err := f.svc.CreateRule(f.ctx, reconciliation.CreateRuleInput{Name: "second", TargetProjectName: "Second", SitePrefix: "NE"})
	require.NoError(t, err)
	assert.Zero(t, res.Reassigned)
	assert.Equal(t, first.ID, f.entry(t, "4500001-1").InternalProjectID)
}

func TestCreateRule_CustomerProjectAndDateWindow(t *testing.T) {
	f := newFixture(t)
	metro := f.createProject(t, "Metro")
	_, err := f.svc.CreateCustomerProject(f.ctx, reconciliation.CreateCustomerProjectInput{Code: "CP-1"})
	require.NoError(t, err)

	in := poLine("4500001", 1, "1", "1", "NE-001", termSplit, "2024-03-31")
	in.CustomerProjectLabel = "CP-1"
	out := poLine("4500001", 2, "1", "1", "NE-002", termSplit, "2024-04-01")
	out.CustomerProjectLabel = "CP-1"
	f.ingestPOs(t, in, out, poLine("4500001", 3, "1", "1", "NE-003", termSplit, "2024-03-01"))
	f.mergePOs(t)

	res, err := f.svc.CreateRule(f.ctx, reconciliation.CreateRuleInput{
		Name:                "metro q1",
		TargetProjectName:   "Metro",
		CustomerProjectCode: "CP-1",
		PublishDateMin:      day("2024-01-01"),
		PublishDateMax:      day("2024-03-31"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Reassigned)
	assert.Equal(t, metro.ID, f.entry(t, "4500001-1").InternalProjectID)
	assert.Equal(t, testdb.TBDProjectID, f.entry(t, "4500001-2").InternalProjectID)
	assert.Equal(t, testdb.TBDProjectID, f.entry(t, "4500001-3").InternalProjectID)
}

func TestCreateRule_Errors(t *testing.T) {
	f := newFixture(t)
	f.createProject(t, "North")

	tests := []struct {
		name  string
		input reconciliation.CreateRuleInput
		code  string
	}{
		{
			name:  "unknown project",
			input: reconciliation.CreateRuleInput{Name: "r", TargetProjectName: "Nowhere", SitePrefix: "NE"},
			code:  "PROJECT_NOT_FOUND",
		},
		{
			name:  "unknown customer project",
			input: reconciliation.CreateRuleInput{Name: "r", TargetProjectName: "North", CustomerProjectCode: "CP-404"},
			code:  "CUSTOMER_PROJECT_NOT_FOUND",
		},
		{
			name:  "no predicate",
			input: reconciliation.CreateRuleInput{Name: "r", TargetProjectName: "North"},
			code:  "INVALID_RULE",
		},
		{
			name: "inverted window",
			input: reconciliation.CreateRuleInput{
				Name: "r", TargetProjectName: "North",
				PublishDateMin: day("2024-05-01"), PublishDateMax: day("2024-04-01"),
			},
			code: "INVALID_RULE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateRule(f.ctx, tt.input)
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
		})
	}

	rules, err := f.svc.ListRules(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestApplyRuleRetrospectively(t *testing.T) {
	f := newFixture(t)
	north := f.createProject(t, "North")

	res, err := f.svc.CreateRule(f.ctx, reconciliation.CreateRuleInput{Name: "north", TargetProjectName: "North", SiteSuffix: "-N"})
	require.NoError(t, err)

	f.ingestPOs(t, poLine("4500001", 1, "1", "1", "B-N", termSplit, "2024-01-10"))
	f.mergePOs(t)
	assert.Equal(t, north.ID, f.entry(t, "4500001-1").InternalProjectID)

	// an entry written back to TBD outside the resolver
	require.NoError(t, f.db.Exec("UPDATE merged_purchase_orders SET internal_project_id = ? WHERE po_id = ?",
		testdb.TBDProjectID, "4500001-1").Error)

	n, err := f.svc.ApplyRuleRetrospectively(f.ctx, res.Rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, north.ID, f.entry(t, "4500001-1").InternalProjectID)

	n, err = f.svc.ApplyRuleRetrospectively(f.ctx, res.Rule.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.ApplyRuleRetrospectively(f.ctx, uuid.New())
	assert.ErrorIs(t, err, reconciliation.ErrRuleNotFound)
}

func TestAssignSitesToProject(t *testing.T) {
	f := newFixture(t)
	north := f.createProject(t, "North")
	south := f.createProject(t, "South")

	f.ingestPOs(t,
		poLine("4500001", 1, "1", "1", "S-1", termSplit, "2024-01-10"),
		poLine("4500001", 2, "1", "1", "S-2", termSplit, "2024-01-10"),
		poLine("4500001", 3, "1", "1", "S-3", termSplit, "2024-01-10"),
	)
	f.mergePOs(t)

	n, err := f.svc.AssignSitesToProject(f.ctx, []string{" S-1 ", "S-2", "S-1", ""}, "North")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, north.ID, f.entry(t, "4500001-1").InternalProjectID)
	assert.Equal(t, north.ID, f.entry(t, "4500001-2").InternalProjectID)

	// re-pointing moves entries off a non-TBD project too
	n, err = f.svc.AssignSiteToProject(f.ctx, "S-1", "South")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, south.ID, f.entry(t, "4500001-1").InternalProjectID)

	// later uploads of the site follow the allocation
	f.ingestPOs(t, poLine("4500002", 1, "1", "1", "S-1", termSplit, "2024-01-10"))
	f.mergePOs(t)
	assert.Equal(t, south.ID, f.entry(t, "4500002-1").InternalProjectID)
	assert.Equal(t, testdb.TBDProjectID, f.entry(t, "4500001-3").InternalProjectID)
}

func TestAssignSitesToProject_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AssignSitesToProject(f.ctx, []string{" ", ""}, "North")
	assert.ErrorIs(t, err, reconciliation.ErrEmptySiteList)

	_, err = f.svc.AssignSiteToProject(f.ctx, "S-1", "Nowhere")
	assert.ErrorIs(t, err, reconciliation.ErrProjectNotFound)
}

func TestProjects(t *testing.T) {
	f := newFixture(t)
	f.createProject(t, "North")

	_, err := f.svc.CreateProject(f.ctx, reconciliation.CreateProjectInput{Name: "North"})
	assert.ErrorIs(t, err, reconciliation.ErrProjectExists)

	projects, err := f.svc.ListProjects(f.ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	names := []string{projects[0].Name, projects[1].Name}
	assert.ElementsMatch(t, []string{"North", "TBD"}, names)

	_, err = f.svc.CreateCustomerProject(f.ctx, reconciliation.CreateCustomerProjectInput{Code: "CP-1"})
	require.NoError(t, err)
	_, err = f.svc.CreateCustomerProject(f.ctx, reconciliation.CreateCustomerProjectInput{Code: "CP-1"})
	assert.ErrorIs(t, err, reconciliation.ErrCustomerProjectExists)

	customers, err := f.svc.ListCustomerProjects(f.ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "CP-1", customers[0].Name)
}
