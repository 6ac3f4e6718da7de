package cacheflow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/island-is/cache/internal/backend"
	"github.com/island-is/cache/internal/gate"
	"github.com/island-is/cache/internal/logging"
	"github.com/island-is/cache/internal/runner"
)

// SaveInput 是 save 阶段的调用参数。key 不在其中：上传始终使用 restore 阶段记录的 primary key。
type SaveInput struct {
	Paths           []string
	ForceSave       bool
	UploadChunkSize int64
}

// SaveOutcome 记录 save 阶段在哪一步结束。
type SaveOutcome int

const (
	SaveRejected SaveOutcome = iota
	SaveNoState
	SaveSkipped
	SaveUploaded
	SaveConflict
	SaveFailed
)

var saveOutcomeNames = map[SaveOutcome]string{
	SaveRejected: "rejected",
	SaveNoState:  "no_state",
	SaveSkipped:  "skipped",
	SaveUploaded: "uploaded",
	SaveConflict: "conflict",
	SaveFailed:   "failed",
}

func (o SaveOutcome) String() string {
	if name, ok := saveOutcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("SaveOutcome(%d)", int(o))
}

// Saver 编排 save 阶段。
type Saver struct {
	backend backend.Backend
	state   StateStore
	env     runner.Environment
	logger  logrus.FieldLogger
}

func NewSaver(b backend.Backend, state StateStore, env runner.Environment, logger logrus.FieldLogger) *Saver {
	return &Saver{backend: b, state: state, env: env, logger: logger}
}

// Run 执行一次 save。只有校验类错误会作为 error 返回，其余失败都降级为日志。
func (s *Saver) Run(ctx context.Context, in SaveInput) (SaveOutcome, error) {
	if verdict := gate.Check(s.env); !verdict.Allowed {
		s.logger.WithField("code", string(verdict.Code)).Warn(verdict.Reason)
		return SaveRejected, nil
	}

	primaryKey, err := s.state.Get(ctx, StateCachePrimaryKey)
	if err != nil {
		s.logger.WithError(err).Debug("read primary key from run state")
	}
	if err != nil || primaryKey == "" {
		s.logger.Warn("Error retrieving key from state.")
		return SaveNoState, nil
	}

	matchedKey, err := s.state.Get(ctx, StateCacheMatchedKey)
	if err != nil {
		s.logger.WithError(err).Debug("read matched key from run state")
		matchedKey = ""
	}

	log := s.logger.WithFields(logging.KeyFields(primaryKey, matchedKey))
	log.WithField("force_save", in.ForceSave).Debug("save decision")

	if Decide(primaryKey, matchedKey, in.ForceSave) == DecisionSkip {
		s.logger.Infof("Cache hit occurred on the primary key %s, not saving cache.", primaryKey)
		return SaveSkipped, nil
	}

	err = s.upload(ctx, in, primaryKey)
	switch {
	case err == nil:
		if in.ForceSave {
			s.logger.Infof("Cache force save enabled with key: %s", primaryKey)
		} else {
			s.logger.Infof("Cache saved with key: %s", primaryKey)
		}
		return SaveUploaded, nil
	case backend.IsValidation(err):
		return SaveFailed, err
	case backend.IsReservationConflict(err):
		s.logger.Info(err.Error())
		return SaveConflict, nil
	default:
		log.Warn(err.Error())
		return SaveFailed, nil
	}
}

// upload 把后端内部的 panic 转换为普通错误，缓存上传失败不应让整个运行失败。
func (s *Saver) upload(ctx context.Context, in SaveInput, key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected error during cache upload: %v", r)
		}
	}()
	return s.backend.Save(ctx, in.Paths, key, backend.SaveOptions{UploadChunkSize: in.UploadChunkSize})
}
