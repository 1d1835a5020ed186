// Package secret resolves the service's secrets from SSM Parameter Store or,
// in DEV_MODE, from the environment.
package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSMClient is the subset of *ssm.Client methods used by SSMResolver.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver retrieves secret values by name.
type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SSMResolver fetches secrets from AWS Systems Manager Parameter Store.
type SSMResolver struct {
	client SSMClient
}

// NewSSMResolver returns a Resolver backed by SSM Parameter Store.
func NewSSMResolver(client SSMClient) Resolver {
	return &SSMResolver{client: client}
}

// GetSecret retrieves a SecureString parameter from SSM with decryption.
func (r *SSMResolver) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm get parameter %q: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("ssm parameter %q has no value", name)
	}
	return *out.Parameter.Value, nil
}

// EnvResolver reads the variable named after the last segment of the parameter
// path: "/notesync/jwt-secret" is read from JWT_SECRET.
type EnvResolver struct {
	getenv func(string) string
}

func NewEnvResolver() Resolver {
	return &EnvResolver{getenv: os.Getenv}
}

func (r *EnvResolver) GetSecret(_ context.Context, name string) (string, error) {
	envName := paramNameToEnvVar(name)
	val := r.getenv(envName)
	if val == "" {
		return "", fmt.Errorf("environment variable %q (from param %q) is not set", envName, name)
	}
	return val, nil
}

// ResolveAll fetches every named secret. Missing secrets are absent from the
// result and reported together in the returned error.
func ResolveAll(ctx context.Context, r Resolver, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	var errs []error
	for _, name := range names {
		val, err := r.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[name] = val
	}
	return values, errors.Join(errs...)
}

func paramNameToEnvVar(name string) string {
	parts := strings.Split(name, "/")
	last := parts[len(parts)-1]
	return strings.ToUpper(strings.ReplaceAll(last, "-", "_"))
}

// Params holds the parameter names of the service's secrets.
type Params struct {
	GoogleClientSecret string
	JWTSecret          string
	APIGatewaySecret   string
}

// Secrets holds the resolved values. A secret that could not be resolved is empty.
type Secrets struct {
	GoogleClientSecret string
	JWTSecret          string
	APIGatewaySecret   string
}

// Load resolves every secret named in p. The error joins the failures; the
// secrets that did resolve are returned alongside it.
func Load(ctx context.Context, r Resolver, p Params) (Secrets, error) {
	values, err := ResolveAll(ctx, r, p.GoogleClientSecret, p.JWTSecret, p.APIGatewaySecret)
	return Secrets{
		GoogleClientSecret: values[p.GoogleClientSecret],
		JWTSecret:          values[p.JWTSecret],
		APIGatewaySecret:   values[p.APIGatewaySecret],
	}, err
}
