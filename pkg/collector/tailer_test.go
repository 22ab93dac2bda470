// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/DataDog/logpipe/pkg/message"
)

type TailerTestSuite struct {
	suite.Suite
	testDir  string
	testPath string

	c    *Collector
	sink *recordingSink
}

func (suite *TailerTestSuite) SetupTest() {
	suite.testDir = suite.T().TempDir()
	suite.testPath = filepath.Join(suite.testDir, "tailed.log")
	suite.Require().NoError(os.WriteFile(suite.testPath, nil, 0644))

	suite.sink = &recordingSink{}
	suite.c = New(testConfig(), suite.sink.push)
}

func (suite *TailerTestSuite) drained() []string {
	var out []string
	for _, entry := range suite.c.queue.PopBatch(1000) {
		out = append(out, string(entry.Content))
	}
	return out
}

func (suite *TailerTestSuite) fileContent() string {
	content, err := os.ReadFile(suite.testPath)
	suite.Require().NoError(err)
	return string(content)
}

func (suite *TailerTestSuite) newTailer(maxLines int) *Tailer {
	tailer, err := NewTailer(suite.c, suite.testPath, message.LevelInfo, 10*time.Millisecond, maxLines, false)
	suite.Require().NoError(err)
	return tailer
}

func (suite *TailerTestSuite) TestTruncateAfterConsume() {
	suite.Require().NoError(os.WriteFile(suite.testPath, []byte("L1\nL2\nL3\nL4\nL5\n"), 0644))
	tailer := suite.newTailer(3)

	suite.Require().NoError(tailer.round())
	suite.Equal([]string{"L1", "L2", "L3"}, suite.drained())
	suite.Equal("L4\nL5\n", suite.fileContent())
	suite.Equal(int64(0), tailer.lastPos)

	suite.Require().NoError(tailer.round())
	suite.Equal([]string{"L4", "L5"}, suite.drained())
	suite.Equal("", suite.fileContent())
}

func (suite *TailerTestSuite) TestPartialLineWaitsForNewline() {
	suite.Require().NoError(os.WriteFile(suite.testPath, []byte("complete\npart"), 0644))
	tailer := suite.newTailer(10)

	suite.Require().NoError(tailer.round())
	suite.Equal([]string{"complete"}, suite.drained())
	suite.Equal("part", suite.fileContent())

	// finishing the line makes it visible on the next round
	f, err := os.OpenFile(suite.testPath, os.O_APPEND|os.O_WRONLY, 0644)
	suite.Require().NoError(err)
	_, err = f.WriteString("ial\n")
	suite.Require().NoError(err)
	suite.Require().NoError(f.Close())

	suite.Require().NoError(tailer.round())
	suite.Equal([]string{"partial"}, suite.drained())
	suite.Equal("", suite.fileContent())
}

func (suite *TailerTestSuite) TestInterleavedWrites() {
	var written []string
	appendLines := func(lines ...string) {
		f, err := os.OpenFile(suite.testPath, os.O_APPEND|os.O_WRONLY, 0644)
		suite.Require().NoError(err)
		for _, line := range lines {
			_, err = f.WriteString(line + "\n")
			suite.Require().NoError(err)
			written = append(written, line)
		}
		suite.Require().NoError(f.Close())
	}

	tailer := suite.newTailer(2)
	var got []string
	appendLines("a", "b", "c")
	for i := 0; i < 4; i++ {
		suite.Require().NoError(tailer.round())
		got = append(got, suite.drained()...)
		appendLines("x" + string(rune('0'+i)))
	}
	for len(got) < len(written) {
		suite.Require().NoError(tailer.round())
		batch := suite.drained()
		if len(batch) == 0 {
			break
		}
		got = append(got, batch...)
	}
	suite.Equal(written, got)
}

func (suite *TailerTestSuite) TestEmptyLinesAreSkipped() {
	suite.Require().NoError(os.WriteFile(suite.testPath, []byte("one\n\n\ntwo\n"), 0644))
	tailer := suite.newTailer(10)

	suite.Require().NoError(tailer.round())
	suite.Equal([]string{"one", "two"}, suite.drained())
}

func (suite *TailerTestSuite) TestBackupSidecar() {
	suite.Require().NoError(os.WriteFile(suite.testPath, []byte("keep me\nrest\n"), 0644))
	tailer, err := NewTailer(suite.c, suite.testPath, message.LevelInfo, 10*time.Millisecond, 1, true)
	suite.Require().NoError(err)

	suite.Require().NoError(tailer.round())

	sidecars, err := filepath.Glob(suite.testPath + ".*.bak")
	suite.Require().NoError(err)
	suite.Require().Len(sidecars, 1)
	content, err := os.ReadFile(sidecars[0])
	suite.Require().NoError(err)
	suite.Equal("keep me\n", string(content))
}

func (suite *TailerTestSuite) TestBackupCleanup() {
	tailer := suite.newTailer(1)

	stale := suite.testPath + ".1.bak"
	fresh := suite.testPath + ".2.bak"
	suite.Require().NoError(os.WriteFile(stale, []byte("old"), 0644))
	suite.Require().NoError(os.WriteFile(fresh, []byte("new"), 0644))
	old := time.Now().Add(-2 * time.Hour)
	suite.Require().NoError(os.Chtimes(stale, old, old))

	tailer.cleanBackups(time.Hour)

	sidecars, err := filepath.Glob(suite.testPath + ".*.bak")
	suite.Require().NoError(err)
	suite.Equal([]string{fresh}, sidecars)
}

func (suite *TailerTestSuite) TestStartStop() {
	suite.Require().NoError(os.WriteFile(suite.testPath, []byte("live\n"), 0644))
	tailer := suite.newTailer(10)
	tailer.Start()

	suite.Eventually(func() bool { return suite.c.Size() == 1 },
		time.Second, 5*time.Millisecond)
	tailer.Stop()
	suite.True(tailer.IsFinished())
}

func TestTailerTestSuite(t *testing.T) {
	suite.Run(t, new(TailerTestSuite))
}

func TestCollectFromFileMissing(t *testing.T) {
	c := New(testConfig(), (&recordingSink{}).push)
	errs := make(chan error, 1)
	c.SetErrorCallback(func(err error) { errs <- err })

	_, err := c.CollectFromFile("/does/not/exist.log", message.LevelInfo, time.Second, 10)
	require.Error(t, err)
	require.NotEmpty(t, errs)
}
