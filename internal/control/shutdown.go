package control

import "go.uber.org/zap"

// Shutdown 尽力而为的安全停机：导通角归零、关闭通道、继电器关断并释放。
// 任一步失败只记录日志，继续后续步骤。dev 与 relay 均可为 nil。
func Shutdown(dev Device, relay Relay, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}

	if dev != nil {
		for _, ch := range Channels {
			if err := dev.SetAngle(ch, 0); err != nil {
				log.Warn("shutdown: zero angle failed", zap.Int("channel", ch), zap.Error(err))
			}
		}
		for _, ch := range Channels {
			if err := dev.DisableChannel(ch); err != nil {
				log.Warn("shutdown: disable channel failed", zap.Int("channel", ch), zap.Error(err))
			}
		}
	}

	if relay != nil {
		if err := relay.TurnOff(); err != nil {
			log.Warn("shutdown: relay off failed", zap.Error(err))
		} else {
			log.Info("relay turned off")
		}
		relay.Release()
	}
}
