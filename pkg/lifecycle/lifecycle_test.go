/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/blockscan/pkg/logger"
)

func TestCreateComponentLogger(t *testing.T) {
	log, err := CreateComponentLogger(context.Background(), "scan", &logger.Config{Level: "warn", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = CreateComponentLogger(context.Background(), "scan", &logger.Config{Level: "nope"})
	require.Error(t, err)

	require.NoError(t, ShutdownLogger(context.Background()))
}

func TestSignalContextFollowsParent(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())

	ctx, stop := SignalContext(parent, logger.NewTestLogger())
	defer stop()

	cancelParent()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled with parent")
	}
}
