// Package xconf 基于 koanf 的配置加载，支持 YAML/JSON 与文件热重载。
//
//	cfg, err := xconf.Load("/etc/xreplset/client.yaml")
//	if err != nil {
//	    return err
//	}
//	var c xreplset.Config
//	if err := cfg.Unmarshal("", &c); err != nil {
//	    return err
//	}
//
// Watch 监视配置文件所在目录，防抖后调用 Reload 并通知回调；
// ctx 取消后监视 goroutine 退出，Watch 返回的 stop 函数会等待其结束。
package xconf
