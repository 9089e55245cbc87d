package cmd

import "strings"

func rootLongHelp() string {
	return strings.TrimSpace(`
检查源文件行数是否超过上限，适合放在 CI 和提交钩子里。

使用方式：
1. 检查（默认命令）
   - 命令：fence [path...]，等同于 fence check [path...]
   - 未传路径时检查当前目录
2. 生成配置
   - 命令：fence init
   - 接入老项目：fence init --baseline，把当前超限文件写入豁免

上限的决定顺序：
1. [exemptions] 中与路径完全相同的条目
2. [[rules]] 中第一条命中的 glob
3. default_max_lines（默认 500）

配置文件：
- 默认从当前目录向上查找 .fence.toml / .fence.yaml / .fence.yml
- 配置文件所在目录即路径匹配的根目录
- 环境变量 FENCE_DEFAULT_MAX_LINES / FENCE_EXCLUDE / FENCE_RESPECT_GITIGNORE 覆盖文件内容

输出格式：
- text（默认）：每个超限文件一行 + 汇总
- json：一次性输出 violations / skipped / summary
- ndjson：meta / violation / pass / skipped / error / summary 事件

退出码：
- 0 通过
- 1 存在超限文件
- 2 参数错误
- 3 输入错误
- 4 配置错误
- 5 内部错误
`)
}

func rootExampleHelp() string {
	return strings.TrimSpace(`
  # 检查当前目录
  fence

  # 检查指定目录和文件
  fence src/ scripts/build.sh

  # 只检查改动过的文件
  fence check --changed

  # JSON 输出给其他工具
  fence --format json

  # 接入老项目：先记录现状，再阻止继续变大
  fence init --baseline
`)
}

func checkLongHelp() string {
	return strings.TrimSpace(`
按配置检查每个文件的行数，超过上限即为违规（等于上限不算）。

行数：
- 统计换行符个数；最后一行没有换行符时再加一
- 空文件为 0 行

跳过（不算错误，--verbose 时列出）：
- binary：前 8KiB 含 NUL 或控制字符过多
- too_large：超过 --max-file-size
- unreadable：无法读取

扫描：
- 目录默认递归，默认不跟随软链接
- 默认忽略目录：.git/.svn/.hg/node_modules/vendor/dist/build
- exclude：含 "/" 或 "**" 的模式匹配完整相对路径，否则只匹配文件名
- respect_gitignore = true（默认）时应用各级 .gitignore

glob 语法：
- * 不跨越 "/"，** 可跨越任意层目录
- 区分大小写，匹配整个相对路径

--changed：
- 只检查工作区改动、未跟踪文件，以及相对目标分支的提交改动
- 目标分支：--target-branch > FENCE_TARGET_BRANCH > CI 变量 > origin/HEAD > main
- 不在 git 仓库中时检查全部文件
`)
}

func checkExampleHelp() string {
	return strings.TrimSpace(`
  # 1) 默认检查
  fence check

  # 2) 输出合规文件
  fence check --all --format ndjson

  # 3) 临时放宽默认上限
  FENCE_DEFAULT_MAX_LINES=800 fence check src/

  # 4) PR 中只检查改动
  fence check --changed --target-branch main
`)
}

func initLongHelp() string {
	return strings.TrimSpace(`
在当前目录生成 .fence.toml。

--baseline：
- 已有配置时原地更新，没有时生成新的配置
- 每个超限文件写入一条豁免，值恰好等于它当前的行数
- 已有但仍合规的豁免保持不变
- 只改写豁免部分，注释、排版和 ${VAR} 引用原样保留；FENCE_* 环境变量不会写入文件
- 之后这些文件不能再变长，缩短后可以手动收紧或删除豁免
`)
}
