package chart

// runnerScript 前导脚本：声明允许使用的名字，在独立命名空间执行代码，再保存所有打开的图
const runnerScript = `import os
import sys

import matplotlib
matplotlib.use("Agg")
import matplotlib.pyplot as plt

try:
    import pandas as pd
except ImportError:
    pd = None

try:
    import seaborn as sns
except ImportError:
    sns = None

WORKBOOK = os.environ.get("CHART_WORKBOOK", "")
OUTPUT_DIR = os.environ["CHART_OUTPUT_DIR"]

df = None
if pd is not None:
    if WORKBOOK:
        df = pd.read_excel(WORKBOOK)
    else:
        df = pd.DataFrame()

with open("chart_code.py", "r", encoding="utf-8") as fh:
    source = fh.read()

scope = {
    "__builtins__": __builtins__,
    "__name__": "__chart__",
    "pd": pd,
    "plt": plt,
    "sns": sns,
    "df": df,
    "WORKBOOK": WORKBOOK,
}

plt.close("all")
exec(compile(source, "chart_code.py", "exec"), scope)

for i, num in enumerate(plt.get_fignums(), start=1):
    plt.figure(num).savefig(os.path.join(OUTPUT_DIR, "figure_%03d.png" % i), bbox_inches="tight")
plt.close("all")
sys.exit(0)
`
