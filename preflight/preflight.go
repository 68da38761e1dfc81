// Package preflight checks, before a deployment goes live, that a role can
// perform every call the pipeline makes. The check is advisory: it uses IAM
// policy simulation and never touches the resources themselves.
package preflight

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/gurre/employee-etl/aws"
	"github.com/gurre/employee-etl/blob"
)

// Plan names the resources one deployment touches.
type Plan struct {
	Input        blob.Location // Uploaded CSV read by the ingest function
	Region       string
	Table        string
	ReportBucket string
	ReportKey    string
	TopicARN     string
}

// Denied is an action the principal may not perform on a resource.
type Denied struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Decision string `json:"decision"`
}

func (d Denied) String() string {
	return fmt.Sprintf("%s on %s: %s", d.Action, d.Resource, d.Decision)
}

// Checker runs the simulation.
type Checker struct {
	client aws.IAMClient
}

// NewChecker creates a new Checker instance
func NewChecker(client aws.IAMClient) *Checker {
	return &Checker{client: client}
}

type grant struct {
	resource string
	actions  []string
}

// Check simulates every grant of the plan for principalARN and returns the
// denied pairs. An empty result means all calls are allowed.
func (c *Checker) Check(ctx context.Context, principalARN string, plan Plan) ([]Denied, error) {
	grants, err := grantsFor(principalARN, plan)
	if err != nil {
		return nil, err
	}

	var denied []Denied
	for _, g := range grants {
		results, err := c.simulate(ctx, principalARN, g)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if r.EvalDecision == types.PolicyEvaluationDecisionTypeAllowed {
				continue
			}
			denied = append(denied, Denied{
				Action:   deref(r.EvalActionName),
				Resource: g.resource,
				Decision: string(r.EvalDecision),
			})
		}
	}
	return denied, nil
}

func (c *Checker) simulate(ctx context.Context, principalARN string, g grant) ([]types.EvaluationResult, error) {
	input := &iam.SimulatePrincipalPolicyInput{
		PolicySourceArn: &principalARN,
		ActionNames:     g.actions,
		ResourceArns:    []string{g.resource},
	}

	var results []types.EvaluationResult
	for {
		out, err := c.client.SimulatePrincipalPolicy(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to simulate %v on %s: %w", g.actions, g.resource, err)
		}
		results = append(results, out.EvaluationResults...)
		if !out.IsTruncated || out.Marker == nil {
			return results, nil
		}
		input.Marker = out.Marker
	}
}

func grantsFor(principalARN string, plan Plan) ([]grant, error) {
	account, err := AccountID(principalARN)
	if err != nil {
		return nil, err
	}
	if plan.Input.Bucket == "" || plan.Input.Key == "" {
		return nil, fmt.Errorf("input location is required")
	}

	return []grant{
		{
			resource: fmt.Sprintf("arn:aws:s3:::%s/%s", plan.Input.Bucket, plan.Input.Key),
			actions:  []string{"s3:GetObject"},
		},
		{
			resource: fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s", plan.Region, account, plan.Table),
			actions:  []string{"dynamodb:BatchWriteItem", "dynamodb:Scan"},
		},
		{
			resource: fmt.Sprintf("arn:aws:s3:::%s/%s", plan.ReportBucket, plan.ReportKey),
			actions:  []string{"s3:PutObject"},
		},
		{
			resource: plan.TopicARN,
			actions:  []string{"sns:Publish"},
		},
	}, nil
}

// AccountID returns the account field of an ARN such as
// arn:aws:iam::123456789012:role/etl.
func AccountID(arn string) (string, error) {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" || parts[4] == "" {
		return "", fmt.Errorf("invalid principal ARN: %s", arn)
	}
	return parts[4], nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
