/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weft-social/weft/internal/pkg/cmdutil"
	"github.com/weft-social/weft/pkg/activitypub/service/collection"
)

const commonEnvVarUsageText = "Alternatively, this can be set with the following environment variable: "

const (
	hostURLFlagName  = "host-url"
	hostURLEnvKey    = "WEFT_HOST_URL"
	hostURLFlagUsage = "Address to listen on. Format: HostName:Port. " + commonEnvVarUsageText + hostURLEnvKey

	externalEndpointFlagName  = "external-endpoint"
	externalEndpointEnvKey    = "WEFT_EXTERNAL_ENDPOINT"
	externalEndpointFlagUsage = "External endpoint under which IRIs are minted. Format: HostName[:Port]" +
		" with http or https scheme. " + commonEnvVarUsageText + externalEndpointEnvKey

	tlsCertificateFlagName  = "tls-certificate"
	tlsCertificateEnvKey    = "WEFT_TLS_CERTIFICATE"
	tlsCertificateFlagUsage = "TLS certificate for the server. " + commonEnvVarUsageText + tlsCertificateEnvKey

	tlsKeyFlagName  = "tls-key"
	tlsKeyEnvKey    = "WEFT_TLS_KEY"
	tlsKeyFlagUsage = "TLS key for the server. " + commonEnvVarUsageText + tlsKeyEnvKey

	databaseTypeFlagName  = "database-type"
	databaseTypeEnvKey    = "WEFT_DATABASE_TYPE"
	databaseTypeFlagUsage = "The type of database to use for the activity store. Supported options: mem, mongo. " +
		commonEnvVarUsageText + databaseTypeEnvKey

	databaseURLFlagName  = "database-url"
	databaseURLEnvKey    = "WEFT_DATABASE_URL"
	databaseURLFlagUsage = "The URL of the database. Required when database-type is mongo. " +
		commonEnvVarUsageText + databaseURLEnvKey

	queueTypeFlagName  = "queue-type"
	queueTypeEnvKey    = "WEFT_QUEUE_TYPE"
	queueTypeFlagUsage = "The type of message queue to use for delivery and events. Supported options: mem, amqp. " +
		commonEnvVarUsageText + queueTypeEnvKey

	queueURLFlagName  = "queue-url"
	queueURLEnvKey    = "WEFT_QUEUE_URL"
	queueURLFlagUsage = "The URL of the AMQP message queue. Required when queue-type is amqp. " +
		commonEnvVarUsageText + queueURLEnvKey

	pageSizeFlagName  = "page-size"
	pageSizeEnvKey    = "WEFT_PAGE_SIZE"
	pageSizeFlagUsage = "The number of items per collection page. " + commonEnvVarUsageText + pageSizeEnvKey

	deliveryConcurrencyFlagName  = "delivery-concurrency"
	deliveryConcurrencyEnvKey    = "WEFT_DELIVERY_CONCURRENCY"
	deliveryConcurrencyFlagUsage = "The number of concurrent delivery workers. " +
		commonEnvVarUsageText + deliveryConcurrencyEnvKey

	deliveryMaxRetriesFlagName  = "delivery-max-retries"
	deliveryMaxRetriesEnvKey    = "WEFT_DELIVERY_MAX_RETRIES"
	deliveryMaxRetriesFlagUsage = "The number of times a failed delivery is retried before it is posted to the" +
		" undeliverable queue. " + commonEnvVarUsageText + deliveryMaxRetriesEnvKey

	deliveryRetryInitialIntervalFlagName  = "delivery-retry-initial-interval"
	deliveryRetryInitialIntervalEnvKey    = "WEFT_DELIVERY_RETRY_INITIAL_INTERVAL"
	deliveryRetryInitialIntervalFlagUsage = "The backoff interval of the first delivery retry, e.g. 2s. " +
		commonEnvVarUsageText + deliveryRetryInitialIntervalEnvKey

	deliveryRetryMaxIntervalFlagName  = "delivery-retry-max-interval"
	deliveryRetryMaxIntervalEnvKey    = "WEFT_DELIVERY_RETRY_MAX_INTERVAL"
	deliveryRetryMaxIntervalFlagUsage = "The maximum backoff interval of a delivery retry, e.g. 5m. " +
		commonEnvVarUsageText + deliveryRetryMaxIntervalEnvKey

	deliverySendTimeoutFlagName  = "delivery-send-timeout"
	deliverySendTimeoutEnvKey    = "WEFT_DELIVERY_SEND_TIMEOUT"
	deliverySendTimeoutFlagUsage = "The timeout of a single delivery POST, e.g. 30s. " +
		commonEnvVarUsageText + deliverySendTimeoutEnvKey

	logSpecFlagName  = "log-spec"
	logSpecEnvKey    = "WEFT_LOG_SPEC"
	logSpecFlagUsage = "Logging spec. Format: module1=level1:module2=level2:defaultLevel. " +
		commonEnvVarUsageText + logSpecEnvKey
)

const (
	databaseTypeMem   = "mem"
	databaseTypeMongo = "mongo"

	queueTypeMem  = "mem"
	queueTypeAMQP = "amqp"
)

type serverParams struct {
	hostURL          string
	externalEndpoint string
	tlsCertificate   string
	tlsKey           string

	databaseType string
	databaseURL  string

	queueType string
	queueURL  string

	pageSize int

	deliveryConcurrency          int
	deliveryMaxRetries           int
	deliveryRetryInitialInterval time.Duration
	deliveryRetryMaxInterval     time.Duration
	deliverySendTimeout          time.Duration

	logSpec string
}

func createFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(hostURLFlagName, "u", "", hostURLFlagUsage)
	cmd.Flags().StringP(externalEndpointFlagName, "e", "", externalEndpointFlagUsage)
	cmd.Flags().String(tlsCertificateFlagName, "", tlsCertificateFlagUsage)
	cmd.Flags().String(tlsKeyFlagName, "", tlsKeyFlagUsage)
	cmd.Flags().String(databaseTypeFlagName, "", databaseTypeFlagUsage)
	cmd.Flags().String(databaseURLFlagName, "", databaseURLFlagUsage)
	cmd.Flags().String(queueTypeFlagName, "", queueTypeFlagUsage)
	cmd.Flags().String(queueURLFlagName, "", queueURLFlagUsage)
	cmd.Flags().String(pageSizeFlagName, "", pageSizeFlagUsage)
	cmd.Flags().String(deliveryConcurrencyFlagName, "", deliveryConcurrencyFlagUsage)
	cmd.Flags().String(deliveryMaxRetriesFlagName, "", deliveryMaxRetriesFlagUsage)
	cmd.Flags().String(deliveryRetryInitialIntervalFlagName, "", deliveryRetryInitialIntervalFlagUsage)
	cmd.Flags().String(deliveryRetryMaxIntervalFlagName, "", deliveryRetryMaxIntervalFlagUsage)
	cmd.Flags().String(deliverySendTimeoutFlagName, "", deliverySendTimeoutFlagUsage)
	cmd.Flags().String(logSpecFlagName, "", logSpecFlagUsage)
}

//nolint:cyclop
func getServerParams(cmd *cobra.Command) (*serverParams, error) {
	hostURL, err := cmdutil.GetString(cmd, hostURLFlagName, hostURLEnvKey)
	if err != nil {
		return nil, err
	}

	externalEndpoint, err := cmdutil.GetString(cmd, externalEndpointFlagName, externalEndpointEnvKey)
	if err != nil {
		return nil, err
	}

	tlsCertificate, err := cmdutil.GetOptionalString(cmd, tlsCertificateFlagName, tlsCertificateEnvKey)
	if err != nil {
		return nil, err
	}

	tlsKey, err := cmdutil.GetOptionalString(cmd, tlsKeyFlagName, tlsKeyEnvKey)
	if err != nil {
		return nil, err
	}

	databaseType, err := cmdutil.GetOptionalString(cmd, databaseTypeFlagName, databaseTypeEnvKey)
	if err != nil {
		return nil, err
	}

	if databaseType == "" {
		databaseType = databaseTypeMem
	}

	databaseURL, err := cmdutil.GetOptionalString(cmd, databaseURLFlagName, databaseURLEnvKey)
	if err != nil {
		return nil, err
	}

	if databaseType == databaseTypeMongo && databaseURL == "" {
		return nil, fmt.Errorf("%s is required when %s is %s", databaseURLFlagName,
			databaseTypeFlagName, databaseTypeMongo)
	}

	queueType, err := cmdutil.GetOptionalString(cmd, queueTypeFlagName, queueTypeEnvKey)
	if err != nil {
		return nil, err
	}

	if queueType == "" {
		queueType = queueTypeMem
	}

	queueURL, err := cmdutil.GetOptionalString(cmd, queueURLFlagName, queueURLEnvKey)
	if err != nil {
		return nil, err
	}

	if queueType == queueTypeAMQP && queueURL == "" {
		return nil, fmt.Errorf("%s is required when %s is %s", queueURLFlagName,
			queueTypeFlagName, queueTypeAMQP)
	}

	pageSize, err := cmdutil.GetOptionalInt(cmd, pageSizeFlagName, pageSizeEnvKey, collection.DefaultPageSize)
	if err != nil {
		return nil, err
	}

	concurrency, err := cmdutil.GetOptionalInt(cmd, deliveryConcurrencyFlagName, deliveryConcurrencyEnvKey, 0)
	if err != nil {
		return nil, err
	}

	maxRetries, err := cmdutil.GetOptionalInt(cmd, deliveryMaxRetriesFlagName, deliveryMaxRetriesEnvKey, 0)
	if err != nil {
		return nil, err
	}

	retryInitialInterval, err := cmdutil.GetOptionalDuration(cmd, deliveryRetryInitialIntervalFlagName,
		deliveryRetryInitialIntervalEnvKey, 0)
	if err != nil {
		return nil, err
	}

	retryMaxInterval, err := cmdutil.GetOptionalDuration(cmd, deliveryRetryMaxIntervalFlagName,
		deliveryRetryMaxIntervalEnvKey, 0)
	if err != nil {
		return nil, err
	}

	sendTimeout, err := cmdutil.GetOptionalDuration(cmd, deliverySendTimeoutFlagName,
		deliverySendTimeoutEnvKey, 0)
	if err != nil {
		return nil, err
	}

	logSpec, err := cmdutil.GetOptionalString(cmd, logSpecFlagName, logSpecEnvKey)
	if err != nil {
		return nil, err
	}

	return &serverParams{
		hostURL:                      hostURL,
		externalEndpoint:             externalEndpoint,
		tlsCertificate:               tlsCertificate,
		tlsKey:                       tlsKey,
		databaseType:                 databaseType,
		databaseURL:                  databaseURL,
		queueType:                    queueType,
		queueURL:                     queueURL,
		pageSize:                     pageSize,
		deliveryConcurrency:          concurrency,
		deliveryMaxRetries:           maxRetries,
		deliveryRetryInitialInterval: retryInitialInterval,
		deliveryRetryMaxInterval:     retryMaxInterval,
		deliverySendTimeout:          sendTimeout,
		logSpec:                      logSpec,
	}, nil
}
