package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// awsAccountsSection mirrors the "aws" section of a project config snapshot
// (spec.md §3: `aws?{accounts[], cli?}`).
type awsAccountsSection struct {
	Accounts []awsAccount `json:"accounts"`
	CLI      string       `json:"cli,omitempty"`
}

// awsAccount is one configured account the agent materialises a named
// profile for. Credentials are fetched lazily via the control-plane client's
// aws-credentials endpoint rather than carried in the project config body.
type awsAccount struct {
	AccountID string `json:"accountId"`
	Profile   string `json:"profile"`
}

// awsCredentials is the shape returned by GET /aws-credentials?accountId=...
type awsCredentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken,omitempty"`
	Region          string `json:"region,omitempty"`
}

// awsCredentialsFetcher is the subset of controlplane.Client the profile
// writer needs.
type awsCredentialsFetcher interface {
	AWSCredentials(ctx context.Context, accountID string) (json.RawMessage, error)
}

// materialiseAWSProfiles writes one named profile per configured account
// into <projectDir>/.aws/credentials and returns the CLAUDE_CODE-visible
// environment overlay (AWS_SHARED_CREDENTIALS_FILE, AWS_PROFILE for the
// first account) that points the local CLI subprocess at them.
//
// There is no INI/AWS-config library anywhere in the example corpus, so
// this writer constructs the profile file with plain string formatting
// (see DESIGN.md).
func materialiseAWSProfiles(ctx context.Context, client awsCredentialsFetcher, projectDir string, section awsAccountsSection) ([]string, error) {
	if projectDir == "" || len(section.Accounts) == 0 {
		return nil, nil
	}

	awsDir := filepath.Join(projectDir, ".aws")
	if err := os.MkdirAll(awsDir, 0o700); err != nil {
		return nil, fmt.Errorf("runtime: create aws dir: %w", err)
	}

	var sb strings.Builder
	for _, acct := range section.Accounts {
		raw, err := client.AWSCredentials(ctx, acct.AccountID)
		if err != nil {
			return nil, fmt.Errorf("runtime: fetch aws credentials for %s: %w", acct.AccountID, err)
		}
		var creds awsCredentials
		if err := json.Unmarshal(raw, &creds); err != nil {
			return nil, fmt.Errorf("runtime: decode aws credentials for %s: %w", acct.AccountID, err)
		}
		writeAWSProfileSection(&sb, acct.Profile, creds)
	}

	credsPath := filepath.Join(awsDir, "credentials")
	if err := os.WriteFile(credsPath, []byte(sb.String()), 0o600); err != nil {
		return nil, fmt.Errorf("runtime: write aws credentials file: %w", err)
	}

	overlay := []string{"AWS_SHARED_CREDENTIALS_FILE=" + credsPath}
	if first := section.Accounts[0]; first.Profile != "" {
		overlay = append(overlay, "AWS_PROFILE="+first.Profile)
	}
	return overlay, nil
}

func writeAWSProfileSection(sb *strings.Builder, profile string, creds awsCredentials) {
	fmt.Fprintf(sb, "[%s]\n", profile)
	fmt.Fprintf(sb, "aws_access_key_id = %s\n", creds.AccessKeyID)
	fmt.Fprintf(sb, "aws_secret_access_key = %s\n", creds.SecretAccessKey)
	if creds.SessionToken != "" {
		fmt.Fprintf(sb, "aws_session_token = %s\n", creds.SessionToken)
	}
	if creds.Region != "" {
		fmt.Fprintf(sb, "region = %s\n", creds.Region)
	}
	sb.WriteString("\n")
}
