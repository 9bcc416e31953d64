package settings

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"

	"github.com/tantralabs/derivuniverse/logger"
)

// ProviderCredentials holds the API keys the History Gateway's secondary
// providers (Polygon, InfluxDB) need, loaded either from a local JSON file
// or from AWS Secrets Manager.
type ProviderCredentials struct {
	PolygonAPIKey  string `json:"polygon_api_key"`
	InfluxAddr     string `json:"influx_addr"`
	InfluxDatabase string `json:"influx_database"`
	InfluxUsername string `json:"influx_username"`
	InfluxPassword string `json:"influx_password"`
}

// LoadCredentials loads ProviderCredentials from a local file, or from AWS
// Secrets Manager when cloud is true and name identifies a secret there.
func LoadCredentials(name string, cloud bool) (ProviderCredentials, error) {
	var creds ProviderCredentials
	if !cloud {
		data, err := os.ReadFile(name)
		if err != nil {
			return creds, fmt.Errorf("settings: read secret file: %w", err)
		}
		if err := json.Unmarshal(data, &creds); err != nil {
			return creds, fmt.Errorf("settings: parse secret file: %w", err)
		}
		return creds, nil
	}

	raw, err := getSecret(name)
	if err != nil {
		return creds, err
	}
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return creds, fmt.Errorf("settings: parse cloud secret: %w", err)
	}
	return creds, nil
}

func getSecret(secretName string) (string, error) {
	svc := secretsmanager.New(session.Must(session.NewSession()), aws.NewConfig().WithRegion("us-west-1"))
	input := &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretName),
		VersionStage: aws.String("AWSCURRENT"),
	}

	result, err := svc.GetSecretValue(input)
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			logger.Errorf("settings: secrets manager error %s: %s\n", aerr.Code(), aerr.Error())
		}
		return "", fmt.Errorf("settings: get secret value: %w", err)
	}

	if result.SecretString != nil {
		return *result.SecretString, nil
	}

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(result.SecretBinary)))
	n, err := base64.StdEncoding.Decode(decoded, result.SecretBinary)
	if err != nil {
		return "", fmt.Errorf("settings: decode binary secret: %w", err)
	}
	return string(decoded[:n]), nil
}
