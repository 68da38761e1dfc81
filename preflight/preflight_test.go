package preflight

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/gurre/employee-etl/blob"
)

const testPrincipal = "arn:aws:iam::123456789012:role/employee-etl"

// mockIAM allows everything except the action/resource pairs listed in deny.
type mockIAM struct {
	deny     map[string]string
	pageSize int
	calls    []*iam.SimulatePrincipalPolicyInput
	err      error
}

func (m *mockIAM) SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error) {
	copied := *params
	m.calls = append(m.calls, &copied)
	if m.err != nil {
		return nil, m.err
	}

	var results []types.EvaluationResult
	for _, action := range params.ActionNames {
		decision := types.PolicyEvaluationDecisionTypeAllowed
		if m.deny[action] == params.ResourceArns[0] {
			decision = types.PolicyEvaluationDecisionTypeImplicitDeny
		}
		name := action
		results = append(results, types.EvaluationResult{EvalActionName: &name, EvalDecision: decision})
	}

	if m.pageSize == 0 || len(results) <= m.pageSize {
		return &iam.SimulatePrincipalPolicyOutput{EvaluationResults: results}, nil
	}
	start := 0
	if params.Marker != nil {
		start = m.pageSize
	}
	end := min(start+m.pageSize, len(results))
	out := &iam.SimulatePrincipalPolicyOutput{EvaluationResults: results[start:end]}
	if end < len(results) {
		marker := "next"
		out.IsTruncated = true
		out.Marker = &marker
	}
	return out, nil
}

func testPlan() Plan {
	return Plan{
		Input:        blob.Location{Bucket: "uploads", Key: "employees.csv"},
		Region:       "us-east-1",
		Table:        "Employees",
		ReportBucket: "reports",
		ReportKey:    "daily_summary_2024-05-01.csv",
		TopicARN:     "arn:aws:sns:us-east-1:123456789012:summary",
	}
}

func TestCheckAllAllowed(t *testing.T) {
	client := &mockIAM{}

	denied, err := NewChecker(client).Check(context.Background(), testPrincipal, testPlan())
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(denied) != 0 {
		t.Errorf("expected nothing denied, got %v", denied)
	}
	if len(client.calls) != 4 {
		t.Fatalf("expected one simulation per resource, got %d", len(client.calls))
	}

	table := client.calls[1]
	if table.ResourceArns[0] != "arn:aws:dynamodb:us-east-1:123456789012:table/Employees" {
		t.Errorf("unexpected table ARN %s", table.ResourceArns[0])
	}
	if len(table.ActionNames) != 2 {
		t.Errorf("expected BatchWriteItem and Scan, got %v", table.ActionNames)
	}
	if *table.PolicySourceArn != testPrincipal {
		t.Errorf("unexpected principal %s", *table.PolicySourceArn)
	}
}

func TestCheckReportsDenied(t *testing.T) {
	client := &mockIAM{deny: map[string]string{
		"sns:Publish":  "arn:aws:sns:us-east-1:123456789012:summary",
		"s3:PutObject": "arn:aws:s3:::reports/daily_summary_2024-05-01.csv",
	}}

	denied, err := NewChecker(client).Check(context.Background(), testPrincipal, testPlan())
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(denied) != 2 {
		t.Fatalf("expected 2 denied pairs, got %v", denied)
	}
	if denied[0].Action != "s3:PutObject" || denied[0].Decision != "implicitDeny" {
		t.Errorf("unexpected first denial %v", denied[0])
	}
	if denied[1].Action != "sns:Publish" {
		t.Errorf("unexpected second denial %v", denied[1])
	}
}

func TestCheckFollowsMarker(t *testing.T) {
	client := &mockIAM{
		pageSize: 1,
		deny:     map[string]string{"dynamodb:Scan": "arn:aws:dynamodb:us-east-1:123456789012:table/Employees"},
	}

	denied, err := NewChecker(client).Check(context.Background(), testPrincipal, testPlan())
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(denied) != 1 || denied[0].Action != "dynamodb:Scan" {
		t.Errorf("expected Scan denial from second page, got %v", denied)
	}
	if len(client.calls) != 5 {
		t.Errorf("expected 5 calls with one continuation, got %d", len(client.calls))
	}
}

func TestCheckErrors(t *testing.T) {
	boom := errors.New("access denied")
	if _, err := NewChecker(&mockIAM{err: boom}).Check(context.Background(), testPrincipal, testPlan()); !errors.Is(err, boom) {
		t.Errorf("expected simulation error, got %v", err)
	}

	if _, err := NewChecker(&mockIAM{}).Check(context.Background(), "not-an-arn", testPlan()); err == nil {
		t.Error("expected error for invalid principal")
	}

	plan := testPlan()
	plan.Input = blob.Location{}
	if _, err := NewChecker(&mockIAM{}).Check(context.Background(), testPrincipal, plan); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestAccountID(t *testing.T) {
	testCases := []struct {
		arn     string
		want    string
		wantErr bool
	}{
		{arn: testPrincipal, want: "123456789012"},
		{arn: "arn:aws:iam::123456789012:user/path/ops", want: "123456789012"},
		{arn: "arn:aws:sts::123456789012:assumed-role/etl/session", want: "123456789012"},
		{arn: "arn:aws:s3:::bucket", wantErr: true},
		{arn: "role/etl", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.arn, func(t *testing.T) {
			got, err := AccountID(tc.arn)
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
