package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Loader fetches secret values from AWS Secrets Manager.
type Loader struct {
	client *secretsmanager.Client
}

// NewLoader builds a Loader from the ambient AWS configuration
// (environment, shared config, instance role).
func NewLoader(ctx context.Context) (*Loader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Loader{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// GetString returns the plaintext value of the named secret.
func (l *Loader) GetString(ctx context.Context, name string) (string, error) {
	out, err := l.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value", name)
	}
	return *out.SecretString, nil
}

// GetJSON unmarshals a JSON secret value into v.
func (l *Loader) GetJSON(ctx context.Context, name string, v any) error {
	raw, err := l.GetString(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode secret %q: %w", name, err)
	}
	return nil
}
